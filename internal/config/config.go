// Package config loads service settings from a YAML file and
// CARBON_DASHBOARD_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CARBON_DASHBOARD_"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRemote = "remote"
)

// ErrInvalidConfig is returned when settings are inconsistent.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every service setting.
type Config struct {
	Listen      string          `yaml:"listen"`
	Log         LogConfig       `yaml:"log"`
	FactorsFile string          `yaml:"factors_file"`
	Store       StoreConfig     `yaml:"store"`
	Remote      RemoteConfig    `yaml:"remote"`
	MQTT        MQTTConfig      `yaml:"mqtt"`
	CORS        CORSConfig      `yaml:"cors"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Reports     ReportsConfig   `yaml:"reports"`
}

// LogConfig selects the log level and output format ("json" or "console").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects where consumption records live. Report schedules are
// always kept in the SQLite database at SQLitePath.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// RemoteConfig configures the remote CRUD API.
type RemoteConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// MQTTConfig configures assessment publishing. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CORSConfig configures cross-origin access to the HTTP API.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// AllowsAnyOrigin reports whether the wildcard origin is configured.
func (c CORSConfig) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// SchedulerConfig configures scheduled report delivery.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// ReportsConfig configures where locally delivered reports are written.
type ReportsConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen: ":8080",
		Log:    LogConfig{Level: "info", Format: "json"},
		Store:  StoreConfig{Driver: DriverSQLite, SQLitePath: "data/carbon-dashboard.db"},
		Remote: RemoteConfig{Timeout: 10 * time.Second, MaxRetries: 3},
		MQTT:   MQTTConfig{Topic: "carbon/emissions/assessments", ClientID: "carbon-dashboard"},
		CORS:   CORSConfig{MaxAge: 86400},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: time.Minute,
		},
		Reports: ReportsConfig{OutputDir: "reports"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// path is non-empty), then environment overrides, then each override in
// order (command-line flags). The result is validated.
func Load(path string, logger zerolog.Logger, overrides ...func(*Config)) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := Decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnv(&cfg, logger)
	for _, override := range overrides {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// ApplyEnv overlays CARBON_DASHBOARD_* variables onto cfg. Values that fail
// to parse are logged and ignored.
func ApplyEnv(cfg *Config, logger zerolog.Logger) {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("LISTEN", &cfg.Listen)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("FACTORS_FILE", &cfg.FactorsFile)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("SQLITE_PATH", &cfg.Store.SQLitePath)
	str("REMOTE_BASE_URL", &cfg.Remote.BaseURL)
	str("REMOTE_TOKEN", &cfg.Remote.Token)
	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_TOPIC", &cfg.MQTT.Topic)
	str("MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	str("MQTT_USERNAME", &cfg.MQTT.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Password)
	str("REPORTS_OUTPUT_DIR", &cfg.Reports.OutputDir)

	if v, ok := os.LookupEnv(EnvPrefix + "CORS_ALLOWED_ORIGINS"); ok {
		cfg.CORS.AllowedOrigins = splitOrigins(v)
		if cfg.CORS.AllowsAnyOrigin() {
			logger.Warn().Msg("CORS wildcard origin (*) is insecure; use specific origins in production")
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "CORS_ALLOW_CREDENTIALS"); ok {
		cfg.CORS.AllowCredentials = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	envInt(logger, "CORS_MAX_AGE", &cfg.CORS.MaxAge)
	envInt(logger, "REMOTE_MAX_RETRIES", &cfg.Remote.MaxRetries)
	envDuration(logger, "REMOTE_TIMEOUT", &cfg.Remote.Timeout)
	envDuration(logger, "SCHEDULER_INTERVAL", &cfg.Scheduler.Interval)

	if v, ok := os.LookupEnv(EnvPrefix + "REMOTE_REQUESTS_PER_SECOND"); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && parsed >= 0 {
			cfg.Remote.RequestsPerSecond = parsed
		} else {
			logger.Warn().Str("value", v).Msg("invalid " + EnvPrefix + "REMOTE_REQUESTS_PER_SECOND, using default")
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SCHEDULER_ENABLED"); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Scheduler.Enabled = parsed
		} else {
			logger.Warn().Str("value", v).Msg("invalid " + EnvPrefix + "SCHEDULER_ENABLED, using default")
		}
	}
}

func envInt(logger zerolog.Logger, name string, dst *int) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
		*dst = parsed
		return
	}
	logger.Warn().Str("value", v).Msg("invalid " + EnvPrefix + name + ", using default")
}

func envDuration(logger zerolog.Logger, name string, dst *time.Duration) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	if parsed, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && parsed > 0 {
		*dst = parsed
		return
	}
	logger.Warn().Str("value", v).Msg("invalid " + EnvPrefix + name + ", using default")
}

func splitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks cross-field rules.
func (c Config) Validate() error {
	var problems []string
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	// Schedules always live in SQLite, whichever driver holds records.
	if c.Store.SQLitePath == "" {
		problems = append(problems, "store.sqlite_path is required")
	}
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverRemote:
		if c.Remote.BaseURL == "" {
			problems = append(problems, "remote.base_url is required for the remote driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}
	if c.CORS.AllowsAnyOrigin() && c.CORS.AllowCredentials {
		problems = append(problems, "cannot enable credentials with wildcard origin (*); security risk")
	}
	if c.CORS.MaxAge < 0 {
		problems = append(problems, "cors.max_age must not be negative")
	}
	if c.Scheduler.Interval <= 0 {
		problems = append(problems, "scheduler.interval must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// LogFields returns the settings safe to log: secrets, passwords and tokens
// are dropped.
func (c Config) LogFields() map[string]any {
	fields := map[string]any{
		"listen":             c.Listen,
		"log_level":          c.Log.Level,
		"factors_file":       c.FactorsFile,
		"store_driver":       c.Store.Driver,
		"sqlite_path":        c.Store.SQLitePath,
		"remote_base_url":    c.Remote.BaseURL,
		"remote_token":       c.Remote.Token,
		"mqtt_broker":        c.MQTT.Broker,
		"mqtt_topic":         c.MQTT.Topic,
		"mqtt_password":      c.MQTT.Password,
		"cors_origins":       c.CORS.AllowedOrigins,
		"scheduler_enabled":  c.Scheduler.Enabled,
		"scheduler_interval": c.Scheduler.Interval.String(),
	}
	return sanitizeForLogging(fields)
}

func sanitizeForLogging(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))
	for k, v := range fields {
		kLower := strings.ToLower(k)
		if strings.Contains(kLower, "secret") ||
			strings.Contains(kLower, "password") ||
			strings.Contains(kLower, "token") {
			continue
		}
		sanitized[k] = v
	}
	return sanitized
}
