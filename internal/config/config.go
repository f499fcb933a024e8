package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir   string `toml:"output_dir"`
	ScratchDir  string `toml:"scratch_dir"`
	DownloadDir string `toml:"download_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
}

// Classify contains the extension sets and entry filters used when sorting
// extracted archives.
type Classify struct {
	ImageExtensions   []string         `toml:"image_extensions"`
	ModelExtensions   []string         `toml:"model_extensions"`
	BlacklistPatterns []string         `toml:"blacklist_patterns"`
	CleanPatterns     []string         `toml:"clean_patterns"`
	SizeRules         map[string]int64 `toml:"size_rules"`
}

// Sort contains output layout settings for the repackaging step.
type Sort struct {
	PreserveStructure bool   `toml:"preserve_structure"`
	ImagesDir         string `toml:"images_dir"`
	ArchiveSuffix     string `toml:"archive_suffix"`
	CompressionLevel  int    `toml:"compression_level"`
}

// Extraction contains archive extraction settings.
type Extraction struct {
	UnrarBinary    string `toml:"unrar_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MinFreeSpaceMB int    `toml:"min_free_space_mb"`
}

// Upload contains remote delivery and retry settings.
type Upload struct {
	Enabled                bool   `toml:"enabled"`
	MaxAttempts            int    `toml:"max_attempts"`
	RetryBaseDelaySeconds  int    `toml:"retry_base_delay_seconds"`
	RetryMaxDelaySeconds   int    `toml:"retry_max_delay_seconds"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	PublishTimeoutSeconds  int    `toml:"publish_timeout_seconds"`
	DeleteLocalAfterUpload bool   `toml:"delete_local_after_upload"`
	LinkFilename           string `toml:"link_filename"`
}

// GDrive contains Google Drive credentials and target folder settings.
type GDrive struct {
	AuthMethod      string `toml:"auth_method"`
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
	FolderID        string `toml:"folder_id"`
}

// Workflow contains job coordinator settings.
type Workflow struct {
	Workers             int  `toml:"workers"`
	Cleanup             bool `toml:"cleanup"`
	StaleWorkspaceHours int  `toml:"stale_workspace_hours"`
}

// History contains settings for the SQLite job ledger.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Telegram contains bot settings for the Telegram feed listener.
type Telegram struct {
	BotToken           string   `toml:"bot_token"`
	ChatIDs            []int64  `toml:"chat_ids"`
	AllowedExtensions  []string `toml:"allowed_extensions"`
	PollTimeoutSeconds int      `toml:"poll_timeout_seconds"`
	ReplyWithLink      bool     `toml:"reply_with_link"`

	// VolumeSettleSeconds is how long a multi-part set must go without a new
	// volume before it is handed on.
	VolumeSettleSeconds int `toml:"volume_settle_seconds"`
}

// Watch contains settings for the long-running watch daemon.
type Watch struct {
	Source                      string `toml:"source"`
	InboxDir                    string `toml:"inbox_dir"`
	PollIntervalSeconds         int    `toml:"poll_interval_seconds"`
	DeleteSourceAfterProcessing bool   `toml:"delete_source_after_processing"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
	BatchCompleted bool   `toml:"batch_completed"`
}

// Metrics contains the Prometheus exporter bind address.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for stlpipe.
//
// Configuration sections by subsystem:
//   - Paths: output, scratch, download, state, and log directories
//   - Classify: image/model extension sets, blacklist, clean and size rules
//   - Sort: output layout and model archive settings
//   - Extraction: unrar binary, timeout, and free space floor
//   - Upload: retry policy, timeouts, and link file name
//   - GDrive: Google Drive credentials and folder
//   - Workflow: worker pool and workspace cleanup
//   - History: SQLite job ledger
//   - Telegram: bot token and chat filter for the feed listener
//   - Watch: daemon source selection
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus exporter
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Classify      Classify      `toml:"classify"`
	Sort          Sort          `toml:"sort"`
	Extraction    Extraction    `toml:"extraction"`
	Upload        Upload        `toml:"upload"`
	GDrive        GDrive        `toml:"gdrive"`
	Workflow      Workflow      `toml:"workflow"`
	History       History       `toml:"history"`
	Telegram      Telegram      `toml:"telegram"`
	Watch         Watch         `toml:"watch"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := LoadEnvFile(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// LoadEnvFile populates the process environment from a dotenv file. Variables
// already present in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stlpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories every command relies on.
// The download directory is only needed by the watch daemon and is created
// by the feed listener itself.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.ScratchDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the SQLite job ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the watch daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "stlpipe-watch.lock")
}

// ExtractionTimeout returns the per-job extraction budget.
func (c *Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds) * time.Second
}

// UploadTimeout returns the budget for a single upload attempt.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.TimeoutSeconds) * time.Second
}

// PublishTimeout returns the budget for a single link publish attempt.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.Upload.PublishTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first backoff interval between upload attempts.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Upload.RetryBaseDelaySeconds) * time.Second
}

// RetryMaxDelay returns the backoff ceiling between upload attempts.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Upload.RetryMaxDelaySeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
