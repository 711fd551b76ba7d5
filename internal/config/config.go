package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/breeze-rmm/control-server/internal/logging"
)

var log = logging.L("config")

// Config holds the full runtime configuration for the control server.
type Config struct {
	BindAddress              string `mapstructure:"bind_address"`
	Port                     uint16 `mapstructure:"port"`
	MaxConnections           int    `mapstructure:"max_connections"`
	ConnectionTimeoutSeconds int    `mapstructure:"connection_timeout_seconds"`
	SessionTimeoutSeconds    int    `mapstructure:"session_timeout_seconds"`
	EnableWebSocket          bool   `mapstructure:"enable_websocket"`

	// Logging configuration
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	// Audit configuration
	AuditEnabled    bool   `mapstructure:"audit_enabled"`
	AuditPath       string `mapstructure:"audit_path"`
	AuditMaxSizeMB  int    `mapstructure:"audit_max_size_mb"`
	AuditMaxBackups int    `mapstructure:"audit_max_backups"`

	// Auth configuration
	TokenTTLSeconds int `mapstructure:"token_ttl_seconds"`

	// Rate limiting defaults
	CommandRateLimitMax           int `mapstructure:"command_rate_limit_max"`
	CommandRateLimitWindowSeconds int `mapstructure:"command_rate_limit_window_seconds"`
	SessionRateLimitMax           int `mapstructure:"session_rate_limit_max"`
	SessionRateLimitWindowSeconds int `mapstructure:"session_rate_limit_window_seconds"`

	// Batcher defaults
	BatchSize            int `mapstructure:"batch_size"`
	BatchMinIntervalMS   int `mapstructure:"batch_min_interval_ms"`
	BatchMaxMemoryMB     int `mapstructure:"batch_max_memory_mb"`
	BatchMaxAgeMS        int `mapstructure:"batch_max_age_ms"`

	// Display engine
	DisplayCacheTTLSeconds int `mapstructure:"display_cache_ttl_seconds"`
	FrameCacheTTLSeconds   int `mapstructure:"frame_cache_ttl_seconds"`

	// Outbound alert relay (optional)
	AlertFeedEnabled bool   `mapstructure:"alert_feed_enabled"`
	AlertFeedURL     string `mapstructure:"alert_feed_url"`

	// Platform selection override (enigo|headless|headless-silent), empty = auto-detect
	PlatformOverride string `mapstructure:"platform_override"`
}

func Default() *Config {
	return &Config{
		BindAddress:              "127.0.0.1",
		Port:                     8080,
		MaxConnections:           100,
		ConnectionTimeoutSeconds: 60,
		SessionTimeoutSeconds:    300,
		EnableWebSocket:          false,

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,

		AuditEnabled:    true,
		AuditMaxSizeMB:  50,
		AuditMaxBackups: 3,

		TokenTTLSeconds: 3600,

		CommandRateLimitMax:           100,
		CommandRateLimitWindowSeconds: 60,
		SessionRateLimitMax:           200,
		SessionRateLimitWindowSeconds: 60,

		BatchSize:          10,
		BatchMinIntervalMS: 10,
		BatchMaxMemoryMB:   128,
		BatchMaxAgeMS:      100,

		DisplayCacheTTLSeconds: 30,
		FrameCacheTTLSeconds:   1,
	}
}

// Load reads configuration from cfgFile (or the default search path) and
// environment variables prefixed with BREEZE_CONTROL_, overlaying Default().
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("control-server")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BREEZE_CONTROL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Validate config: fatals block startup, warnings are logged and continue.
	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

// GetDataDir returns the platform-specific data directory for the server.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "BreezeControl", "data")
	case "darwin":
		return "/Library/Application Support/BreezeControl/data"
	default:
		return "/var/lib/breeze-control"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "BreezeControl")
	case "darwin":
		return "/Library/Application Support/BreezeControl"
	default:
		return "/etc/breeze-control"
	}
}
