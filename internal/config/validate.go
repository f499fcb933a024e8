package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateClassify(); err != nil {
		return err
	}
	if err := c.validateSort(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateGDrive(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return nil
}

// ValidateWatch checks the settings only the watch daemon needs.
func (c *Config) ValidateWatch() error {
	switch c.Watch.Source {
	case "telegram":
		if c.Telegram.BotToken == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("telegram.bot_token is required for watch.source = \"telegram\". Set STLPIPE_TELEGRAM_TOKEN or edit %s (create with 'stlpipe config init')", defaultPath)
		}
	case "folder":
		if c.Watch.InboxDir == "" {
			return errors.New("watch.inbox_dir must be set when watch.source is \"folder\"")
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.ScratchDir == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateClassify() error {
	if len(c.Classify.ImageExtensions) == 0 {
		return errors.New("classify.image_extensions must include at least one extension")
	}
	if len(c.Classify.ModelExtensions) == 0 {
		return errors.New("classify.model_extensions must include at least one extension")
	}
	images := make(map[string]struct{}, len(c.Classify.ImageExtensions))
	for _, ext := range c.Classify.ImageExtensions {
		images[ext] = struct{}{}
	}
	for _, ext := range c.Classify.ModelExtensions {
		if _, ok := images[ext]; ok {
			return fmt.Errorf("classify extension %q cannot be both an image and a model", ext)
		}
	}
	for name, size := range c.Classify.SizeRules {
		if strings.TrimSpace(name) == "" {
			return errors.New("classify.size_rules keys must be file names")
		}
		if size <= 0 {
			return fmt.Errorf("classify.size_rules[%q] must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateSort() error {
	if c.Sort.CompressionLevel < -2 || c.Sort.CompressionLevel > 9 {
		return errors.New("sort.compression_level must be between -2 and 9")
	}
	if strings.ContainsAny(c.Sort.ImagesDir, `/\`) {
		return errors.New("sort.images_dir must be a single directory name")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"extraction.timeout_seconds":      c.Extraction.TimeoutSeconds,
		"upload.timeout_seconds":          c.Upload.TimeoutSeconds,
		"upload.publish_timeout_seconds":  c.Upload.PublishTimeoutSeconds,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
		"workflow.workers":                c.Workflow.Workers,
		"telegram.poll_timeout_seconds":   c.Telegram.PollTimeoutSeconds,
		"telegram.volume_settle_seconds":  c.Telegram.VolumeSettleSeconds,
		"watch.poll_interval_seconds":     c.Watch.PollIntervalSeconds,
		"upload.retry_base_delay_seconds": c.Upload.RetryBaseDelaySeconds,
		"upload.retry_max_delay_seconds":  c.Upload.RetryMaxDelaySeconds,
	})
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxAttempts < 1 {
		return errors.New("upload.max_attempts must be >= 1")
	}
	if c.Upload.RetryMaxDelaySeconds < c.Upload.RetryBaseDelaySeconds {
		return errors.New("upload.retry_max_delay_seconds must be >= upload.retry_base_delay_seconds")
	}
	if strings.ContainsAny(c.Upload.LinkFilename, `/\`) {
		return errors.New("upload.link_filename must be a file name")
	}
	if c.Extraction.MinFreeSpaceMB < 0 {
		return errors.New("extraction.min_free_space_mb must be >= 0")
	}
	if c.Workflow.StaleWorkspaceHours < 0 {
		return errors.New("workflow.stale_workspace_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateGDrive() error {
	switch c.GDrive.AuthMethod {
	case "oauth", "service_account":
	default:
		return fmt.Errorf("gdrive.auth_method must be \"oauth\" or \"service_account\", got %q", c.GDrive.AuthMethod)
	}
	if c.Upload.Enabled && c.GDrive.CredentialsFile == "" {
		return errors.New("gdrive.credentials_file must be set when upload.enabled is true")
	}
	return nil
}

func (c *Config) validateWatch() error {
	switch c.Watch.Source {
	case "telegram", "folder":
		return nil
	default:
		return fmt.Errorf("watch.source must be \"telegram\" or \"folder\", got %q", c.Watch.Source)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
