// Package config loads Portway's static configuration: logging, telemetry,
// the HTTP server, the token store, the admin management record, descriptor
// tree location, and per-environment backend connections.
//
// Precedence (highest to lowest): CLI flags (bound by the caller via
// viper.BindPFlag), environment variables (PORTWAY_*), the config file,
// then the defaults below.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root of Portway's static configuration.
type Config struct {
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry" yaml:"telemetry"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Descriptors  DescriptorsConfig  `mapstructure:"descriptors" yaml:"descriptors"`
	Environments map[string]EnvironmentConfig `mapstructure:"environments" yaml:"environments"`
	TokenStore   TokenStoreConfig   `mapstructure:"token_store" yaml:"token_store"`
	Management   ManagementConfig   `mapstructure:"management" yaml:"management"`
	Proxy        ProxyConfig        `mapstructure:"proxy" yaml:"proxy"`
	Files        FilesConfig        `mapstructure:"files" yaml:"files"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls optional OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// ServerConfig controls the public HTTP listener.
type ServerConfig struct {
	Address         string        `mapstructure:"address" validate:"required" yaml:"address"`
	PathPrefix      string        `mapstructure:"path_prefix" validate:"required" yaml:"path_prefix"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
	MaxRequestBytes int64         `mapstructure:"max_request_bytes" yaml:"max_request_bytes"`
}

// DescriptorsConfig locates and governs the endpoint descriptor tree.
type DescriptorsConfig struct {
	Root          string        `mapstructure:"root" validate:"required" yaml:"root"`
	WatchInterval time.Duration `mapstructure:"watch_interval" yaml:"watch_interval"`
	DebounceDelay time.Duration `mapstructure:"debounce_delay" yaml:"debounce_delay"`
}

// EnvironmentConfig describes one named, operator-configured backend
// environment (e.g. "500", "dev", "prod") that SQL endpoints run against.
type EnvironmentConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres sqlserver mysql" yaml:"driver"`
	DSN             string        `mapstructure:"dsn" validate:"required" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
}

// DatabaseType is the control-plane persistence backend for the token store
// and the management record.
type DatabaseType string

const (
	DatabaseSQLite   DatabaseType = "sqlite"
	DatabasePostgres DatabaseType = "postgres"
)

// TokenStoreConfig configures the persistence backend for issued bearer
// tokens.
type TokenStoreConfig struct {
	Type DatabaseType `mapstructure:"type" validate:"required,oneof=sqlite postgres" yaml:"type"`
	DSN  string       `mapstructure:"dsn" validate:"required" yaml:"dsn"`
}

// ManagementConfig configures the passphrase-protected admin management
// record used by the token-management API and CLI.
type ManagementConfig struct {
	LockoutThreshold int           `mapstructure:"lockout_threshold" yaml:"lockout_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration" yaml:"lockout_duration"`
}

// ProxyConfig bounds proxy-endpoint request/response handling.
type ProxyConfig struct {
	DialTimeout         time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout" yaml:"response_timeout"`
	MaxProxyBufferBytes int64         `mapstructure:"max_proxy_buffer_bytes" yaml:"max_proxy_buffer_bytes"`
}

// FilesConfig configures file-endpoint storage.
type FilesConfig struct {
	Backend string       `mapstructure:"backend" validate:"required,oneof=filesystem s3" yaml:"backend"`
	Root    string       `mapstructure:"root" yaml:"root"`
	S3      S3FilesConfig `mapstructure:"s3" yaml:"s3"`
}

// S3FilesConfig configures the optional S3-backed file store. AccessKeyID and
// SecretAccessKey are optional; when both are empty the AWS SDK's default
// credential chain (env vars, shared config, instance role) is used instead.
type S3FilesConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	Region          string `mapstructure:"region" yaml:"region"`
	AccessKeyID     string `mapstructure:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey" yaml:"secretAccessKey"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" validate:"omitempty" yaml:"address"`
}

// Load loads configuration from file, environment, and defaults, in that
// precedence order (file beats defaults, env beats file).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if found {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	} else {
		// No file: still let environment variables override defaults.
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("PORTWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/portway")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

var validate = validator.New()

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	for name, env := range cfg.Environments {
		if err := validate.Struct(env); err != nil {
			return fmt.Errorf("environment %q: %w", name, err)
		}
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories as needed.
// Used by `portway init` to scaffold a starter config.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
