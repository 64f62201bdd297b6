package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Rclone    RcloneConfig    `mapstructure:"rclone"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig contains server-specific configuration
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	BearerToken string `mapstructure:"bearer_token"`
	EnableMCP   bool   `mapstructure:"enable_mcp"`
}

// RcloneConfig describes how the rclone binary is invoked
type RcloneConfig struct {
	Binary     string `mapstructure:"binary"`
	ConfigFile string `mapstructure:"config_file"`
	// Remote is the alias every path is namespaced under, without the trailing colon.
	Remote              string        `mapstructure:"remote"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Retries             uint          `mapstructure:"retries"`
	EmptyListingIsError bool          `mapstructure:"empty_listing_is_error"`
}

// TelemetryConfig contains telemetry configuration
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load loads the configuration from viper
func Load() (*Config, error) {
	cfg := &Config{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := postProcess(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 5002)
	viper.SetDefault("server.enable_mcp", false)

	viper.SetDefault("rclone.binary", "rclone")
	viper.SetDefault("rclone.remote", "encrypted")
	viper.SetDefault("rclone.timeout", 0) // No timeout
	viper.SetDefault("rclone.retries", 0)
	viper.SetDefault("rclone.empty_listing_is_error", true)

	viper.SetDefault("telemetry.enabled", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)

	// Environment variable mappings
	_ = viper.BindEnv("server.bearer_token", "RCLONE_API_BEARER_TOKEN")
	_ = viper.BindEnv("rclone.config_file", "RCLONE_CONFIG")
	_ = viper.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func postProcess(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Server.Port)
	}

	if cfg.Rclone.Binary == "" {
		return fmt.Errorf("rclone binary is not specified")
	}

	// Accept "encrypted:" as well as "encrypted"
	cfg.Rclone.Remote = strings.TrimSuffix(strings.TrimSpace(cfg.Rclone.Remote), ":")
	if cfg.Rclone.Remote == "" {
		return fmt.Errorf("rclone remote is not specified")
	}

	if cfg.Rclone.Timeout < 0 {
		return fmt.Errorf("invalid rclone timeout %s", cfg.Rclone.Timeout)
	}

	if cfg.Rclone.ConfigFile != "" && !filepath.IsAbs(cfg.Rclone.ConfigFile) {
		abs, err := filepath.Abs(cfg.Rclone.ConfigFile)
		if err != nil {
			return err
		}
		cfg.Rclone.ConfigFile = abs
	}

	if cfg.Server.BearerToken == "" {
		cfg.Server.BearerToken = os.Getenv("RCLONE_API_BEARER_TOKEN")
	}

	return nil
}
