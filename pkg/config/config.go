package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Payment gateway configuration
	Gateway GatewayConfig `mapstructure:"gateway"`

	// Identity service configuration
	Identity IdentityConfig `mapstructure:"identity"`

	// Booking policy configuration
	Booking BookingConfig `mapstructure:"booking"`

	// Audit sink configuration
	Audit AuditConfig `mapstructure:"audit"`

	// JWT configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// GatewayConfig holds payment gateway configuration
type GatewayConfig struct {
	URL                 string  `mapstructure:"url"`
	Timeout             int     `mapstructure:"timeout"`
	MaxChargeAttempts   int     `mapstructure:"max_charge_attempts"`
	FraudWarnThreshold  float64 `mapstructure:"fraud_warn_threshold"`
	FraudBlockThreshold float64 `mapstructure:"fraud_block_threshold"`
}

// IdentityConfig holds identity service configuration
type IdentityConfig struct {
	URL     string `mapstructure:"url"`
	Timeout int    `mapstructure:"timeout"`
}

// BookingConfig holds temporal booking policy configuration
type BookingConfig struct {
	MinAdvanceHours   int   `mapstructure:"min_advance_hours"`
	MaxAdvanceDays    int   `mapstructure:"max_advance_days"`
	BusinessStartHour int   `mapstructure:"business_start_hour"`
	BusinessEndHour   int   `mapstructure:"business_end_hour"`
	BusinessDays      []int `mapstructure:"business_days"` // time.Weekday values
	MinReasonLength   int   `mapstructure:"min_reason_length"`
	MaxReasonLength   int   `mapstructure:"max_reason_length"`
}

// AuditConfig holds audit sink configuration
type AuditConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/medcore")

	setDefaults()

	viper.SetEnvPrefix("MEDCORE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8083)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "medcore")
	viper.SetDefault("database.user", "medcore")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Payment gateway defaults
	viper.SetDefault("gateway.url", "http://localhost:9090")
	viper.SetDefault("gateway.timeout", 10)
	viper.SetDefault("gateway.max_charge_attempts", 3)
	viper.SetDefault("gateway.fraud_warn_threshold", 0.6)
	viper.SetDefault("gateway.fraud_block_threshold", 0.85)

	// Identity service defaults
	viper.SetDefault("identity.url", "http://localhost:8081")
	viper.SetDefault("identity.timeout", 5)

	// Booking policy defaults: 24h-90d advance window, Mon-Fri 9-17
	viper.SetDefault("booking.min_advance_hours", 24)
	viper.SetDefault("booking.max_advance_days", 90)
	viper.SetDefault("booking.business_start_hour", 9)
	viper.SetDefault("booking.business_end_hour", 17)
	viper.SetDefault("booking.business_days", []int{1, 2, 3, 4, 5})
	viper.SetDefault("booking.min_reason_length", 10)
	viper.SetDefault("booking.max_reason_length", 500)

	// Audit defaults
	viper.SetDefault("audit.queue_size", 1024)

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if cfg.Gateway.MaxChargeAttempts < 1 {
		return fmt.Errorf("gateway max_charge_attempts must be at least 1")
	}

	if cfg.Booking.MinAdvanceHours < 0 {
		return fmt.Errorf("booking min_advance_hours cannot be negative")
	}

	if cfg.Booking.MaxAdvanceDays*24 < cfg.Booking.MinAdvanceHours {
		return fmt.Errorf("booking advance window is inverted")
	}

	if cfg.Booking.BusinessStartHour >= cfg.Booking.BusinessEndHour {
		return fmt.Errorf("business hours are inverted")
	}

	if cfg.Audit.QueueSize <= 0 {
		return fmt.Errorf("audit queue_size must be positive")
	}

	return nil
}
