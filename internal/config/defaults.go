package config

const (
	defaultSpoolDir             = "~/.local/share/swinglab/spool"
	defaultLogDir               = "~/.local/share/swinglab/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultUploadTimeout        = 300
	defaultAnalyzeTimeout       = 120
	defaultAnalysisPollInterval = 2
	defaultProbeIntervalMillis  = 2000
	defaultDebounceMillis       = 500
	defaultProbeTimeout         = 5
	defaultHealthPath           = "/healthz"
	defaultInterJobDelayMillis  = 1000
	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SpoolDir: defaultSpoolDir,
			LogDir:   defaultLogDir,
		},
		Analysis: Analysis{
			UploadTimeout:       defaultUploadTimeout,
			AnalyzeTimeout:      defaultAnalyzeTimeout,
			PollIntervalSeconds: defaultAnalysisPollInterval,
		},
		Connectivity: Connectivity{
			ProbeIntervalMillis: defaultProbeIntervalMillis,
			DebounceMillis:      defaultDebounceMillis,
			ProbeTimeout:        defaultProbeTimeout,
			HealthPath:          defaultHealthPath,
		},
		Queue: Queue{
			InterJobDelayMillis: defaultInterJobDelayMillis,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
