package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/osvaldoandrade/skinup/internal/tracing"
)

const (
	DefaultBaseURL   = "https://api.mineskin.org/v2"
	DefaultUserAgent = "MineSkinUploader/1.0"
)

type Config struct {
	BaseURL               string        `yaml:"baseUrl"`
	UserAgent             string        `yaml:"userAgent"`
	APIKey                string        `yaml:"apiKey,omitempty"`
	Visibility            string        `yaml:"visibility"`
	Variant               string        `yaml:"variant"`
	Name                  string        `yaml:"name,omitempty"`
	PollIntervalMillis    int           `yaml:"pollIntervalMillis"`
	MaxPollAttempts       int           `yaml:"maxPollAttempts"`
	TimeoutSeconds        int           `yaml:"timeoutSeconds"`
	RequestTimeoutSeconds int           `yaml:"requestTimeoutSeconds"`
	LogLevel              string        `yaml:"logLevel"`
	LogFormat             string        `yaml:"logFormat"`
	OutputDir             string        `yaml:"outputDir,omitempty"`
	StatusAddr            string        `yaml:"statusAddr,omitempty"`
	Tracing               TracingConfig `yaml:"tracing"`

	// envErrs collects environment values that could not be parsed; Validate
	// reports them.
	envErrs []string
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName,omitempty"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio,omitempty"`
}

var (
	validVisibility = map[string]bool{"public": true, "unlisted": true, "private": true}
	validVariant    = map[string]bool{"classic": true, "slim": true, "unknown": true}
	validLogLevel   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// DefaultPath resolves the config file location: SKINUP_CONFIG_PATH, then
// $SKINUP_CONFIG_DIR/config.yaml, then ~/.skinup/config.yaml.
func DefaultPath() string {
	if v := strings.TrimSpace(os.Getenv("SKINUP_CONFIG_PATH")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("SKINUP_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".skinup", "config.yaml")
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

// LoadConfigOptional behaves like LoadConfig but treats an empty path or a
// missing file as an empty config.
func LoadConfigOptional(filePath string) (*Config, error) {
	if strings.TrimSpace(filePath) == "" {
		return fromEnv(), nil
	}
	c, err := LoadConfig(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return fromEnv(), nil
	}
	return c, err
}

// LoadFile reads the file as written, without env overrides or defaults.
// Used when editing the stored config.
func LoadFile(filePath string) (*Config, error) {
	var c Config
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &c, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func fromEnv() *Config {
	var c Config
	c.applyEnv()
	c.applyDefaults()
	return &c
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MINESKIN_API_KEY"); v != "" {
		c.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINESKIN_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SKINUP_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("SKINUP_VISIBILITY"); v != "" {
		c.Visibility = v
	}
	if v := os.Getenv("SKINUP_VARIANT"); v != "" {
		c.Variant = v
	}
	c.envInt("SKINUP_POLL_INTERVAL_MS", &c.PollIntervalMillis)
	c.envInt("SKINUP_MAX_POLL_ATTEMPTS", &c.MaxPollAttempts)
	c.envInt("SKINUP_TIMEOUT_SECONDS", &c.TimeoutSeconds)
	if v := os.Getenv("SKINUP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SKINUP_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("SKINUP_STATUS_ADDR"); v != "" {
		c.StatusAddr = v
	}
	if v := os.Getenv("SKINUP_TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.OTLPEndpoint = v
	}
	for _, key := range []string{"SKINUP_TRACING_SAMPLE_RATIO", "OTEL_TRACES_SAMPLER_ARG"} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		ratio, err := tracing.ParseSampleRatio(v)
		if err != nil {
			c.envErrs = append(c.envErrs, fmt.Sprintf("%s: %v", key, err))
		} else {
			c.Tracing.SampleRatio = ratio
		}
		break
	}
}

func (c *Config) envInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.envErrs = append(c.envErrs, fmt.Sprintf("%s must be an integer (got %q)", key, v))
		return
	}
	*dst = n
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Visibility == "" {
		c.Visibility = "public"
	}
	if c.Variant == "" {
		c.Variant = "classic"
	}
	if c.PollIntervalMillis <= 0 {
		c.PollIntervalMillis = 1000
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c *Config) Validate() error {
	errs := append([]string(nil), c.envErrs...)

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "baseUrl must be a valid http(s) URL")
	}
	if !validVisibility[c.Visibility] {
		errs = append(errs, fmt.Sprintf("visibility must be one of public, unlisted, private (got %q)", c.Visibility))
	}
	if !validVariant[c.Variant] {
		errs = append(errs, fmt.Sprintf("variant must be one of classic, slim, unknown (got %q)", c.Variant))
	}
	if c.MaxPollAttempts < 0 {
		errs = append(errs, "maxPollAttempts must be >= 0")
	}
	if c.TimeoutSeconds < 0 {
		errs = append(errs, "timeoutSeconds must be >= 0")
	}
	if c.LogLevel != "" && !validLogLevel[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("logLevel must be one of debug, info, warn, error (got %q)", c.LogLevel))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, "tracing.sampleRatio must be within [0, 1]")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, "logFormat must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Save writes c to path, creating the parent directory. The file may hold the
// API key, so it is private to the user.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
