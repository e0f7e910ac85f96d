package config

const (
	defaultConfigPath            = "~/.config/scheinicam/config.toml"
	defaultBaseURL               = "http://127.0.0.1:8000"
	defaultRequestTimeoutSeconds = 30
	defaultStateDir              = "~/.local/share/scheinicam"
	defaultLogDir                = "~/.local/share/scheinicam/logs"
	defaultStatusInterval        = 5
	defaultPreviewInterval       = 0
	defaultScheduleInterval      = 60
	defaultLocale                = "de-DE"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 14
	defaultNotifyTimeoutSeconds  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:               defaultBaseURL,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Paths: Paths{
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			RuntimeDir: defaultRuntimeDir(),
		},
		Poll: Poll{
			StatusInterval:   defaultStatusInterval,
			PreviewInterval:  defaultPreviewInterval,
			ScheduleInterval: defaultScheduleInterval,
		},
		Display: Display{
			Locale: defaultLocale,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
	}
}
