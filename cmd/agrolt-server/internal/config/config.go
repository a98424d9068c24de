// Package config provides configuration management for the agrolt
// telemetry server. Settings load from environment variables with
// sensible defaults, 12-factor style.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds all configuration for the telemetry server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	MQTT     MQTTConfig
}

// ServerConfig holds the HTTP/WebSocket listener configuration.
type ServerConfig struct {
	Host          string
	Port          int
	WebSocketPath string // endpoint viewers connect to
	EnableMetrics bool   // expose /metrics
}

// DatabaseConfig holds relational store connection configuration.
type DatabaseConfig struct {
	Driver   string // mysql, postgres, sqlite3
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Prefix   string // table prefix (default: "agrolt_")
}

// MQTTConfig holds message bus configuration.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:          getEnv("SERVER_HOST", "0.0.0.0"),
			Port:          getEnvInt("SERVER_PORT", 8080),
			WebSocketPath: getEnv("SERVER_WS_PATH", "/ws"),
			EnableMetrics: getEnvBool("SERVER_ENABLE_METRICS", true),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "mysql"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "agrolt"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "agrolt"),
			Prefix:   getEnv("DB_PREFIX", "agrolt_"),
		},
		MQTT: MQTTConfig{
			BrokerURL: getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:  getEnv("MQTT_CLIENT_ID", "agrolt-pipeline"),
			Username:  getEnv("MQTT_USERNAME", ""),
			Password:  getEnv("MQTT_PASSWORD", ""),
			QoS:       getEnvInt("MQTT_QOS", 1),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Server.WebSocketPath, validation.Required),
	); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("mysql", "postgres", "sqlite3")),
		validation.Field(&c.Database.Database, validation.Required),
	); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	if err := validation.ValidateStruct(&c.MQTT,
		validation.Field(&c.MQTT.BrokerURL, validation.Required),
		validation.Field(&c.MQTT.QoS, validation.Min(0), validation.Max(2)),
	); err != nil {
		return fmt.Errorf("mqtt config: %w", err)
	}
	return nil
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database
	default:
		return ""
	}
}

// ListenAddr returns the HTTP listen address.
func (c *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
