package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stlpipe/internal/config"
	"stlpipe/internal/extract"
	"stlpipe/internal/logging"
	"stlpipe/internal/textutil"
)

// TelegramOptions configure a Telegram listener.
type TelegramOptions struct {
	DownloadDir       string
	AllowedExtensions []string
	// ChatIDs restricts accepted chats. Empty accepts every chat the bot is in.
	ChatIDs     []int64
	PollTimeout time.Duration
	// VolumeSettle is the quiet period after the last volume of a multi-part
	// set before the set is delivered.
	VolumeSettle time.Duration
	// FileEndpoint is a format string taking the bot token and the file path.
	FileEndpoint string
	HTTPClient   *http.Client
}

// Telegram receives archives posted as documents to a bot.
type Telegram struct {
	bot          *tgbotapi.BotAPI
	downloadDir  string
	allowed      map[string]bool
	chats        map[int64]bool
	pollTimeout  int
	settle       time.Duration
	fileEndpoint string
	client       *http.Client
	logger       *slog.Logger
	now          func() time.Time

	// sets holds multi-part archives still receiving volumes. Only the
	// Listen goroutine touches it.
	sets map[string]*volumeSet
}

// NewTelegram connects to the bot configured in cfg.
func NewTelegram(cfg *config.Config, logger *slog.Logger) (*Telegram, error) {
	token := strings.TrimSpace(cfg.Telegram.BotToken)
	if token == "" {
		return nil, errors.New("telegram.bot_token is not set")
	}
	logger = logging.NewComponentLogger(logger, "telegram")
	_ = tgbotapi.SetLogger(botLogger{logger: logger})
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return NewTelegramWithBot(bot, TelegramOptions{
		DownloadDir:       cfg.Paths.DownloadDir,
		AllowedExtensions: cfg.Telegram.AllowedExtensions,
		ChatIDs:           cfg.Telegram.ChatIDs,
		PollTimeout:       time.Duration(cfg.Telegram.PollTimeoutSeconds) * time.Second,
		VolumeSettle:      time.Duration(cfg.Telegram.VolumeSettleSeconds) * time.Second,
	}, logger), nil
}

// NewTelegramWithBot wraps an already connected bot.
func NewTelegramWithBot(bot *tgbotapi.BotAPI, opts TelegramOptions, logger *slog.Logger) *Telegram {
	t := &Telegram{
		bot:          bot,
		downloadDir:  opts.DownloadDir,
		allowed:      extensionSet(opts.AllowedExtensions),
		chats:        make(map[int64]bool, len(opts.ChatIDs)),
		pollTimeout:  int(opts.PollTimeout / time.Second),
		settle:       opts.VolumeSettle,
		fileEndpoint: opts.FileEndpoint,
		client:       opts.HTTPClient,
		logger:       logging.NewComponentLogger(logger, "telegram"),
		now:          time.Now,
		sets:         make(map[string]*volumeSet),
	}
	for _, id := range opts.ChatIDs {
		t.chats[id] = true
	}
	if t.fileEndpoint == "" {
		t.fileEndpoint = tgbotapi.FileEndpoint
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	if t.pollTimeout <= 0 {
		t.pollTimeout = 60
	}
	if t.settle <= 0 {
		t.settle = 2 * time.Minute
	}
	return t
}

// Username returns the bot account name.
func (t *Telegram) Username() string {
	return t.bot.Self.UserName
}

// Listen long-polls for updates until ctx ends. It returns nil on a clean
// shutdown.
func (t *Telegram) Listen(ctx context.Context, handle Handler) error {
	if err := os.MkdirAll(t.downloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"message", "channel_post"}
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()
	ticker := time.NewTicker(max(t.settle/4, 10*time.Millisecond))
	defer ticker.Stop()

	t.logger.Info("telegram listener started",
		logging.String("bot", t.bot.Self.UserName),
		logging.Int("chat_filter", len(t.chats)),
		logging.String(logging.FieldEventType, "feed_start"),
	)
	for {
		select {
		case <-ctx.Done():
			t.logPendingSets()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update, handle)
		case <-ticker.C:
			t.flushSets(ctx, handle)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update, handle Handler) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.Document == nil || msg.Chat == nil {
		return
	}
	doc := msg.Document
	logger := t.logger.With(
		logging.Int64("chat_id", msg.Chat.ID),
		logging.Int("message_id", msg.MessageID),
		logging.String("file_name", doc.FileName),
	)
	if len(t.chats) > 0 && !t.chats[msg.Chat.ID] {
		logger.Debug("document from unlisted chat ignored")
		return
	}
	if !allowedName(t.allowed, doc.FileName) {
		logger.Debug("document extension not allowed")
		return
	}

	name := textutil.SanitizeFileName(textutil.NormalizeName(doc.FileName))
	dir := t.downloadDir
	setName, index, isVolume := extract.VolumeIndex(name)
	var set *volumeSet
	if isVolume {
		var err error
		if set, err = t.volumeSet(msg.Chat.ID, setName); err != nil {
			logging.WarnWithContext(logger, "volume set directory unavailable", "feed_download_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "volume not stored"),
			)
			return
		}
		dir = set.dir
	}

	path, size, err := t.download(ctx, doc, dir, name)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(logger, "telegram download failed", "feed_download_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the Bot API only serves files up to 20 MB; use process for larger archives"),
			logging.String(logging.FieldImpact, "archive not processed"),
		)
		return
	}
	logger.Info("archive downloaded",
		logging.String("path", path),
		logging.Int64("size_bytes", size),
		logging.String(logging.FieldEventType, "feed_download"),
	)

	ev := Event{
		ID:         "tg-" + strconv.FormatInt(msg.Chat.ID, 10) + "-" + strconv.Itoa(msg.MessageID),
		Name:       filepath.Base(path),
		Path:       path,
		Size:       size,
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		ReceivedAt: msg.Time(),
		Volumes:    []string{path},
	}
	if isVolume {
		set.add(ev, index, t.now())
		logger.Info("volume held until its set is complete",
			logging.String("set", setName),
			logging.Int("volume", index),
			logging.String(logging.FieldEventType, "feed_volume_held"),
		)
		return
	}
	t.deliver(ctx, logger, ev, handle)
}

func (t *Telegram) deliver(ctx context.Context, logger *slog.Logger, ev Event, handle Handler) {
	if err := handle(ctx, ev); err != nil {
		logging.WarnWithContext(logger, "feed handler failed", "feed_handler_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "archive left in the download directory"),
		)
	}
}

func (t *Telegram) download(ctx context.Context, doc *tgbotapi.Document, dir, name string) (string, int64, error) {
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: doc.FileID})
	if err != nil {
		return "", 0, fmt.Errorf("resolve file: %w", err)
	}
	url := fmt.Sprintf(t.fileEndpoint, t.bot.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, ".download-*.partial")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	size, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("write download: %w", err)
	}

	target := uniqueTarget(dir, name, t.now())
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, err
	}
	return target, size, nil
}

// Reply answers the message that delivered ev.
func (t *Telegram) Reply(_ context.Context, ev Event, text string) error {
	if ev.ChatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(ev.ChatID, text)
	msg.ReplyToMessageID = ev.MessageID
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram reply: %w", err)
	}
	return nil
}

// botLogger routes the bot library's log lines into slog.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
