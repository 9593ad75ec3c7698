// Package config layers run configuration from defaults, an optional YAML
// file, and DATASHEETDL_* environment variables. Command-line flags are the
// final layer and live with the command.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full run configuration. Zero values mean "use the default".
type Config struct {
	InputPath       string `yaml:"input"`
	ReportPath      string `yaml:"report"`
	CredentialsPath string `yaml:"credentials"`
	DestDir         string `yaml:"dest_dir"`
	LockPath        string `yaml:"lock"`
	XLSXPath        string `yaml:"xlsx"`

	BaseURL string `yaml:"base_url"`
	Locale  string `yaml:"locale"`

	SearchWorkers     int `yaml:"search_workers"`
	DownloadWorkers   int `yaml:"download_workers"`
	RequestsPerMinute int `yaml:"requests_per_minute"`
	MaxAttempts       int `yaml:"max_attempts"`

	SearchTimeout   time.Duration `yaml:"search_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`

	Force    bool   `yaml:"force"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ReportPath:        "download_report.csv",
		CredentialsPath:   "credentials.json",
		DestDir:           "datasheets",
		BaseURL:           "https://api.digikey.com",
		Locale:            "US",
		SearchWorkers:     3,
		DownloadWorkers:   5,
		RequestsPerMinute: 20,
		MaxAttempts:       3,
		SearchTimeout:     30 * time.Second,
		DownloadTimeout:   60 * time.Second,
		LogLevel:          "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is empty, no file layer), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LockFile returns the configured lock path, defaulting to a dotfile next
// to the destination directory.
func (c Config) LockFile() string {
	if c.LockPath != "" {
		return c.LockPath
	}
	return c.DestDir + ".lock"
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	envString("DATASHEETDL_INPUT", &c.InputPath)
	envString("DATASHEETDL_REPORT", &c.ReportPath)
	envString("DATASHEETDL_CREDENTIALS", &c.CredentialsPath)
	envString("DATASHEETDL_DEST_DIR", &c.DestDir)
	envString("DATASHEETDL_LOCK", &c.LockPath)
	envString("DATASHEETDL_XLSX", &c.XLSXPath)
	envString("DATASHEETDL_BASE_URL", &c.BaseURL)
	envString("DATASHEETDL_LOCALE", &c.Locale)
	envString("DATASHEETDL_LOG_LEVEL", &c.LogLevel)
	if err = envInt("DATASHEETDL_SEARCH_WORKERS", &c.SearchWorkers); err != nil {
		return err
	}
	if err = envInt("DATASHEETDL_DOWNLOAD_WORKERS", &c.DownloadWorkers); err != nil {
		return err
	}
	if err = envInt("DATASHEETDL_REQUESTS_PER_MINUTE", &c.RequestsPerMinute); err != nil {
		return err
	}
	if err = envInt("DATASHEETDL_MAX_ATTEMPTS", &c.MaxAttempts); err != nil {
		return err
	}
	if err = envDuration("DATASHEETDL_SEARCH_TIMEOUT", &c.SearchTimeout); err != nil {
		return err
	}
	if err = envDuration("DATASHEETDL_DOWNLOAD_TIMEOUT", &c.DownloadTimeout); err != nil {
		return err
	}
	return envBool("DATASHEETDL_FORCE", &c.Force)
}

// Validate rejects configurations no run could use.
func (c Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("input CSV path is required")
	}
	if c.CredentialsPath == "" {
		return fmt.Errorf("credentials path is required")
	}
	if c.SearchWorkers <= 0 {
		return fmt.Errorf("search_workers must be positive, got %d", c.SearchWorkers)
	}
	if c.DownloadWorkers <= 0 {
		return fmt.Errorf("download_workers must be positive, got %d", c.DownloadWorkers)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative, got %d", c.RequestsPerMinute)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	return nil
}

func envString(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	*dst = out
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	*dst = out
	return nil
}

func envBool(name string, dst *bool) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	*dst = out
	return nil
}
