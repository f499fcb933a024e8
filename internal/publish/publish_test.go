package publish_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"

	"stlpipe/internal/logging"
	"stlpipe/internal/publish"
	"stlpipe/internal/services"
)

type fakeStorage struct {
	uploadErr error
	shareErr  error
	url       string
}

func (f *fakeStorage) Upload(context.Context, string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "remote-1", nil
}

func (f *fakeStorage) SetPublicReadable(context.Context, string) (string, error) {
	if f.shareErr != nil {
		return "", f.shareErr
	}
	return f.url, nil
}

func TestPublisherClassifiesErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind publish.Kind
	}{
		{name: "plain error", err: errors.New("connection reset"), wantKind: publish.KindTransient},
		{name: "deadline", err: context.DeadlineExceeded, wantKind: publish.KindTransient},
		{name: "quota sentinel", err: fmt.Errorf("drive: %w", publish.ErrQuota), wantKind: publish.KindQuota},
		{name: "typed", err: publish.PermissionDenied("", errors.New("forbidden")), wantKind: publish.KindPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := publish.NewPublisher(&fakeStorage{uploadErr: tt.err}, logging.NewNop())
			_, err := pub.Upload(context.Background(), "x.zip")
			var pubErr *publish.Error
			if !errors.As(err, &pubErr) {
				t.Fatalf("expected *publish.Error, got %T %v", err, err)
			}
			if pubErr.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", pubErr.Kind, tt.wantKind)
			}
			if pubErr.Op != "upload" {
				t.Fatalf("expected op upload, got %q", pubErr.Op)
			}
			if got := services.IsRetryable(err); got != (tt.wantKind == publish.KindTransient) {
				t.Fatalf("IsRetryable = %v for kind %s", got, tt.wantKind)
			}
		})
	}
}

func TestPublisherPassesCancellationThrough(t *testing.T) {
	pub := publish.NewPublisher(&fakeStorage{uploadErr: context.Canceled}, logging.NewNop())
	_, err := pub.Upload(context.Background(), "x.zip")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var pubErr *publish.Error
	if errors.As(err, &pubErr) {
		t.Fatalf("cancellation should not be wrapped, got %v", pubErr)
	}
}

func TestPublishReturnsRemoteIDOnShareFailure(t *testing.T) {
	pub := publish.NewPublisher(&fakeStorage{shareErr: errors.New("boom")}, logging.NewNop())
	id, url, err := pub.Publish(context.Background(), "x.zip")
	if err == nil || id != "remote-1" || url != "" {
		t.Fatalf("Publish = %q, %q, %v", id, url, err)
	}
}

func TestShareRejectsEmptyLink(t *testing.T) {
	pub := publish.NewPublisher(&fakeStorage{}, logging.NewNop())
	if _, err := pub.Share(context.Background(), "remote-1"); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error for empty link, got %v", err)
	}
}

func TestWriteDescriptor(t *testing.T) {
	dir := t.TempDir()
	generated := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	path, err := publish.WriteDescriptor(dir, publish.LinkDescriptor{
		ArtifactName: "models_v2.zip",
		URL:          "https://drive.example/file/abc",
		GeneratedAt:  generated,
	})
	if err != nil {
		t.Fatalf("WriteDescriptor returned error: %v", err)
	}
	if filepath.Base(path) != publish.DefaultLinkFilename {
		t.Fatalf("unexpected descriptor name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read descriptor: %v", err)
	}
	want := "Download your STL models from Google Drive:\n\nhttps://drive.example/file/abc\n\nArtifact: models_v2.zip\nGenerated: 2026-03-14T09:26:53Z\n"
	if string(data) != want {
		t.Fatalf("descriptor = %q, want %q", data, want)
	}

	if _, err := publish.WriteDescriptor(dir, publish.LinkDescriptor{ArtifactName: "models_v2.zip", URL: "https://drive.example/new", GeneratedAt: generated}); err != nil {
		t.Fatalf("rewrite descriptor: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "https://drive.example/new") {
		t.Fatalf("expected last write to win, got %q", data)
	}
}

func newDriveServer(t *testing.T, handler http.HandlerFunc) *publish.Drive {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	d, err := publish.NewDriveWithClient(context.Background(), srv.Client(), "folder-1", option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewDriveWithClient: %v", err)
	}
	return d
}

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models_STL.zip")
	if err := os.WriteFile(path, []byte("PK\x05\x06"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDriveErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reason string
		want   publish.Kind
	}{
		{name: "storage quota", status: http.StatusForbidden, reason: "storageQuotaExceeded", want: publish.KindQuota},
		{name: "user rate limit", status: http.StatusForbidden, reason: "userRateLimitExceeded", want: publish.KindQuota},
		{name: "rate limit", status: http.StatusForbidden, reason: "rateLimitExceeded", want: publish.KindTransient},
		{name: "throttled", status: http.StatusTooManyRequests, reason: "", want: publish.KindTransient},
		{name: "server error", status: http.StatusBadGateway, reason: "backendError", want: publish.KindTransient},
		{name: "unauthorized", status: http.StatusUnauthorized, reason: "authError", want: publish.KindPermissionDenied},
		{name: "forbidden", status: http.StatusForbidden, reason: "insufficientFilePermissions", want: publish.KindPermissionDenied},
		{name: "missing folder", status: http.StatusNotFound, reason: "notFound", want: publish.KindPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDriveServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope","errors":[{"reason":%q,"message":"nope"}]}}`, tt.status, tt.reason)
			})
			_, err := publish.NewPublisher(d, logging.NewNop()).Upload(context.Background(), writeArchive(t))
			var pubErr *publish.Error
			if !errors.As(err, &pubErr) {
				t.Fatalf("expected *publish.Error, got %v", err)
			}
			if pubErr.Kind != tt.want {
				t.Fatalf("kind = %s, want %s (err=%v)", pubErr.Kind, tt.want, err)
			}
		})
	}
}

func TestDriveUploadAndShare(t *testing.T) {
	var sawPermission, sawFolder bool
	d := newDriveServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/upload/"):
			body, _ := io.ReadAll(r.Body)
			sawFolder = strings.Contains(string(body), "folder-1")
			fmt.Fprint(w, `{"id":"file-42"}`)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/permissions"):
			sawPermission = strings.Contains(r.URL.Path, "file-42")
			fmt.Fprint(w, `{"id":"perm-1","type":"anyone","role":"reader"}`)
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{"webViewLink":"https://drive.example/view/file-42"}`)
		default:
			http.Error(w, "unexpected", http.StatusTeapot)
		}
	})

	id, url, err := publish.NewPublisher(d, logging.NewNop()).Publish(context.Background(), writeArchive(t))
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "file-42" {
		t.Fatalf("unexpected id %q", id)
	}
	if url != "https://drive.example/view/file-42" {
		t.Fatalf("expected view link fallback, got %q", url)
	}
	if !sawPermission || !sawFolder {
		t.Fatalf("expected folder parent and permission call (folder=%v permission=%v)", sawFolder, sawPermission)
	}
}
