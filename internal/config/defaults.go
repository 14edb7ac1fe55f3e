package config

const (
	defaultConfigPath                = "~/.config/pagecapture/config.toml"
	defaultWatchDir                  = "~/scans/inbox"
	defaultStagingDir                = "~/.local/share/pagecapture/staging"
	defaultLogDir                    = "~/.local/share/pagecapture/logs"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogRetentionDays          = 30
	defaultPollIntervalSeconds       = 5
	defaultStagingMaxMiB             = 1024
	defaultStagingRetentionHours     = 72
	defaultStagingPurgeIntervalSecs  = 300
	defaultDigest                    = "sha256"
	defaultOperatorEnv               = "PAGECAPTURE_OPERATOR"
	defaultStagingSweepUntrackedHour = 0
)

// DefaultExtensions lists the scan formats accepted by the hot folder.
func DefaultExtensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".pdf"}
}

// DefaultIgnorePatterns lists basenames the hot folder never ingests.
func DefaultIgnorePatterns() []string {
	return []string{".*", "*.part", "~$*"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:   defaultWatchDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Watcher: Watcher{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			Extensions:          DefaultExtensions(),
			IgnorePatterns:      DefaultIgnorePatterns(),
		},
		Staging: Staging{
			Enabled:              true,
			MaxMiB:               defaultStagingMaxMiB,
			RetentionHours:       defaultStagingRetentionHours,
			PurgeIntervalSeconds: defaultStagingPurgeIntervalSecs,
			SweepUntrackedHours:  defaultStagingSweepUntrackedHour,
		},
		Validation: Validation{
			Digest: defaultDigest,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
