package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClassify()
	c.normalizeSort()
	c.normalizeUpload()
	if err := c.normalizeGDrive(); err != nil {
		return err
	}
	c.normalizeTelegram()
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeClassify() {
	c.Classify.ImageExtensions = normalizeExtensions(c.Classify.ImageExtensions)
	c.Classify.ModelExtensions = normalizeExtensions(c.Classify.ModelExtensions)
	c.Classify.BlacklistPatterns = trimNonEmpty(c.Classify.BlacklistPatterns)
	c.Classify.CleanPatterns = trimNonEmpty(c.Classify.CleanPatterns)
	if c.Classify.SizeRules == nil {
		c.Classify.SizeRules = map[string]int64{}
	}
}

func (c *Config) normalizeSort() {
	c.Sort.ImagesDir = strings.TrimSpace(c.Sort.ImagesDir)
	if c.Sort.ImagesDir == "" {
		c.Sort.ImagesDir = defaultImagesDir
	}
	c.Sort.ArchiveSuffix = strings.TrimSpace(c.Sort.ArchiveSuffix)
	if c.Sort.ArchiveSuffix == "" {
		c.Sort.ArchiveSuffix = defaultArchiveSuffix
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.LinkFilename = strings.TrimSpace(c.Upload.LinkFilename)
	if c.Upload.LinkFilename == "" {
		c.Upload.LinkFilename = defaultLinkFilename
	}
}

func (c *Config) normalizeGDrive() error {
	var err error
	c.GDrive.AuthMethod = strings.ToLower(strings.TrimSpace(c.GDrive.AuthMethod))
	if c.GDrive.AuthMethod == "" {
		c.GDrive.AuthMethod = defaultGDriveAuthMethod
	}
	if c.GDrive.CredentialsFile, err = expandPath(c.GDrive.CredentialsFile); err != nil {
		return fmt.Errorf("gdrive.credentials_file: %w", err)
	}
	if c.GDrive.TokenFile, err = expandPath(c.GDrive.TokenFile); err != nil {
		return fmt.Errorf("gdrive.token_file: %w", err)
	}
	c.GDrive.FolderID = strings.TrimSpace(c.GDrive.FolderID)
	if c.GDrive.FolderID == "" {
		if value, ok := os.LookupEnv("STLPIPE_GDRIVE_FOLDER"); ok {
			c.GDrive.FolderID = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GDRIVE_FOLDER_ID"); ok {
			c.GDrive.FolderID = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeTelegram() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	if c.Telegram.BotToken == "" {
		if value, ok := os.LookupEnv("STLPIPE_TELEGRAM_TOKEN"); ok {
			c.Telegram.BotToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("TELEGRAM_BOT_TOKEN"); ok {
			c.Telegram.BotToken = strings.TrimSpace(value)
		}
	}
	c.Telegram.AllowedExtensions = normalizeExtensions(c.Telegram.AllowedExtensions)
	if len(c.Telegram.AllowedExtensions) == 0 {
		c.Telegram.AllowedExtensions = defaultAllowedExtensions()
	}
}

func (c *Config) normalizeWatch() error {
	c.Watch.Source = strings.ToLower(strings.TrimSpace(c.Watch.Source))
	if c.Watch.Source == "" {
		c.Watch.Source = defaultWatchSource
	}
	if strings.TrimSpace(c.Watch.InboxDir) == "" {
		return nil
	}
	var err error
	if c.Watch.InboxDir, err = expandPath(c.Watch.InboxDir); err != nil {
		return fmt.Errorf("watch.inbox_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("STLPIPE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// normalizeExtensions lowercases, dot-prefixes, and de-duplicates extensions.
func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, exists := seen[ext]; exists {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
