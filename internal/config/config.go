package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SpoolDir string `toml:"spool_dir"`
	LogDir   string `toml:"log_dir"`
}

// Analysis contains configuration for the remote swing-analysis service.
type Analysis struct {
	BaseURL             string `toml:"base_url"`
	APIToken            string `toml:"api_token"`
	UploadTimeout       int    `toml:"upload_timeout"`
	AnalyzeTimeout      int    `toml:"analyze_timeout"`
	PollIntervalSeconds int    `toml:"poll_interval"`
}

// Connectivity contains configuration for reachability monitoring.
type Connectivity struct {
	ProbeIntervalMillis int    `toml:"probe_interval_ms"`
	DebounceMillis      int    `toml:"debounce_ms"`
	ProbeTimeout        int    `toml:"probe_timeout"`
	HealthPath          string `toml:"health_path"`
}

// Queue contains configuration for drain behavior.
type Queue struct {
	InterJobDelayMillis int  `toml:"inter_job_delay_ms"`
	FailFast            bool `toml:"fail_fast"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for swinglab.
//
// Configuration sections by subsystem:
//   - Paths: spool and log directories
//   - Analysis: remote upload-and-analyze service connection
//   - Connectivity: reachability probing and edge debounce
//   - Queue: drain pacing and failure policy
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Analysis      Analysis      `toml:"analysis"`
	Connectivity  Connectivity  `toml:"connectivity"`
	Queue         Queue         `toml:"queue"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/swinglab/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. A missing file yields defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("swinglab.toml")
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

func (c *Config) normalize() error {
	var err error
	if c.Paths.SpoolDir, err = expandPath(c.Paths.SpoolDir); err != nil {
		return fmt.Errorf("paths.spool_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Analysis.BaseURL = strings.TrimRight(strings.TrimSpace(c.Analysis.BaseURL), "/")
	c.Analysis.APIToken = strings.TrimSpace(c.Analysis.APIToken)
	if c.Analysis.APIToken == "" {
		c.Analysis.APIToken = strings.TrimSpace(os.Getenv("SWINGLAB_API_TOKEN"))
	}
	if c.Analysis.UploadTimeout <= 0 {
		c.Analysis.UploadTimeout = defaultUploadTimeout
	}
	if c.Analysis.AnalyzeTimeout <= 0 {
		c.Analysis.AnalyzeTimeout = defaultAnalyzeTimeout
	}
	if c.Analysis.PollIntervalSeconds <= 0 {
		c.Analysis.PollIntervalSeconds = defaultAnalysisPollInterval
	}

	if c.Connectivity.ProbeIntervalMillis <= 0 {
		c.Connectivity.ProbeIntervalMillis = defaultProbeIntervalMillis
	}
	if c.Connectivity.DebounceMillis <= 0 {
		c.Connectivity.DebounceMillis = defaultDebounceMillis
	}
	if c.Connectivity.ProbeTimeout <= 0 {
		c.Connectivity.ProbeTimeout = defaultProbeTimeout
	}
	if strings.TrimSpace(c.Connectivity.HealthPath) == "" {
		c.Connectivity.HealthPath = defaultHealthPath
	}
	if !strings.HasPrefix(c.Connectivity.HealthPath, "/") {
		c.Connectivity.HealthPath = "/" + c.Connectivity.HealthPath
	}

	if c.Queue.InterJobDelayMillis < 0 {
		c.Queue.InterJobDelayMillis = defaultInterJobDelayMillis
	}

	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SpoolDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the Unix socket path used for daemon IPC.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "swinglabd.sock")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to the given path. Unless
// overwrite is set it refuses to replace an existing file.
func WriteSample(path string, overwrite bool) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		if !overwrite {
			return fmt.Errorf("config file already exists at %s", expanded)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
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
