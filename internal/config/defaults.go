package config

const (
	defaultConfigPath            = "~/.config/stlpipe/config.toml"
	defaultOutputDir             = "~/stlpipe/output"
	defaultScratchDir            = "~/.local/share/stlpipe/scratch"
	defaultDownloadDir           = "~/.local/share/stlpipe/downloads"
	defaultStateDir              = "~/.local/share/stlpipe"
	defaultLogDir                = "~/.local/share/stlpipe/logs"
	defaultImagesDir             = "Images"
	defaultArchiveSuffix         = "_STL.zip"
	defaultCompressionLevel      = 6
	defaultUnrarBinary           = "unrar"
	defaultExtractionTimeout     = 900
	defaultMinFreeSpaceMB        = 512
	defaultUploadMaxAttempts     = 3
	defaultRetryBaseDelaySeconds = 5
	defaultRetryMaxDelaySeconds  = 60
	defaultUploadTimeoutSeconds  = 1800
	defaultPublishTimeoutSeconds = 60
	defaultLinkFilename          = "link_download_here.txt"
	defaultGDriveAuthMethod      = "oauth"
	defaultGDriveCredentialsFile = "~/.config/stlpipe/client_secrets.json"
	defaultGDriveTokenFile       = "~/.config/stlpipe/gdrive_token.json"
	defaultWorkers               = 2
	defaultTelegramPollTimeout   = 60
	defaultVolumeSettleSeconds   = 120
	defaultWatchSource           = "telegram"
	defaultWatchPollInterval     = 10
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultBaseSizeRuleBytes     = 5 * 1024 * 1024
)

func defaultImageExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}
}

func defaultModelExtensions() []string {
	return []string{".stl", ".obj", ".3mf", ".step", ".stp", ".gcode", ".zip", ".rar", ".7z"}
}

func defaultBlacklistPatterns() []string {
	return []string{"+NSFW", ".url", ".txt", "Boost", "__MACOSX"}
}

func defaultAllowedExtensions() []string {
	return []string{".zip", ".rar"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:   defaultOutputDir,
			ScratchDir:  defaultScratchDir,
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Classify: Classify{
			ImageExtensions:   defaultImageExtensions(),
			ModelExtensions:   defaultModelExtensions(),
			BlacklistPatterns: defaultBlacklistPatterns(),
			CleanPatterns:     []string{"CW Studio"},
			SizeRules:         map[string]int64{"Base.stl": defaultBaseSizeRuleBytes},
		},
		Sort: Sort{
			ImagesDir:        defaultImagesDir,
			ArchiveSuffix:    defaultArchiveSuffix,
			CompressionLevel: defaultCompressionLevel,
		},
		Extraction: Extraction{
			UnrarBinary:    defaultUnrarBinary,
			TimeoutSeconds: defaultExtractionTimeout,
			MinFreeSpaceMB: defaultMinFreeSpaceMB,
		},
		Upload: Upload{
			Enabled:               true,
			MaxAttempts:           defaultUploadMaxAttempts,
			RetryBaseDelaySeconds: defaultRetryBaseDelaySeconds,
			RetryMaxDelaySeconds:  defaultRetryMaxDelaySeconds,
			TimeoutSeconds:        defaultUploadTimeoutSeconds,
			PublishTimeoutSeconds: defaultPublishTimeoutSeconds,
			LinkFilename:          defaultLinkFilename,
		},
		GDrive: GDrive{
			AuthMethod:      defaultGDriveAuthMethod,
			CredentialsFile: defaultGDriveCredentialsFile,
			TokenFile:       defaultGDriveTokenFile,
		},
		Workflow: Workflow{
			Workers: defaultWorkers,
			Cleanup: true,
		},
		History: History{
			Enabled: true,
		},
		Telegram: Telegram{
			AllowedExtensions:   defaultAllowedExtensions(),
			PollTimeoutSeconds:  defaultTelegramPollTimeout,
			ReplyWithLink:       true,
			VolumeSettleSeconds: defaultVolumeSettleSeconds,
		},
		Watch: Watch{
			Source:                      defaultWatchSource,
			PollIntervalSeconds:         defaultWatchPollInterval,
			DeleteSourceAfterProcessing: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
			BatchCompleted: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
