package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stlpipe/internal/config"
)

const userAgent = "stlpipe/0.1"

// Event names a notification type.
type Event string

const (
	EventJobCompleted   Event = "job_completed"
	EventJobFailed      Event = "job_failed"
	EventBatchCompleted Event = "batch_completed"
	EventTest           Event = "test"
)

// Payload carries event fields. Recognised keys per event:
//
//	job_completed:   artifact, link, images, models
//	job_failed:      artifact, reason, error
//	batch_completed: processed, failed, duration
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobCompleted:   cfg.Notifications.JobCompleted,
			EventJobFailed:      cfg.Notifications.JobFailed,
			EventBatchCompleted: cfg.Notifications.BatchCompleted,
			EventTest:           true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobCompleted:
		artifact := payload.str("artifact")
		body := fmt.Sprintf("Published %s (%d images, %d models)", artifact, payload.num("images"), payload.num("models"))
		link := payload.str("link")
		if link != "" {
			body += "\n" + link
		} else {
			body = fmt.Sprintf("Sorted %s (%d images, %d models)", artifact, payload.num("images"), payload.num("models"))
		}
		return message{
			title: "stlpipe - Done",
			body:  body,
			tags:  []string{"stlpipe", "job", "done"},
			click: link,
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("Failed: %s (%s)", payload.str("artifact"), payload.str("reason"))
		if detail := payload.str("error"); detail != "" {
			body += "\n" + detail
		}
		return message{
			title:    "stlpipe - Failed",
			body:     body,
			tags:     []string{"stlpipe", "job", "failed"},
			priority: "high",
		}, true
	case EventBatchCompleted:
		processed, failed := payload.num("processed"), payload.num("failed")
		duration := "0s"
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			duration = d.Round(time.Second).String()
		}
		title := "stlpipe - Batch Complete"
		body := fmt.Sprintf("%d archives processed in %s", processed, duration)
		if failed > 0 {
			title = "stlpipe - Batch Complete (with errors)"
			body = fmt.Sprintf("%d succeeded, %d failed in %s", processed-failed, failed, duration)
		}
		return message{title: title, body: body, tags: []string{"stlpipe", "batch", "completed"}}, true
	case EventTest:
		return message{
			title:    "stlpipe - Test",
			body:     "Notification system test",
			tags:     []string{"stlpipe", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) str(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) num(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}
	if msg.click != "" {
		req.Header.Set("Click", msg.click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
