package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"habittracker/internal/models"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Pagination    PaginationConfig    `yaml:"pagination"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Staff         []string            `yaml:"staff"`
	Exports       ExportConfig        `yaml:"exports"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"HABITS_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Issuer    string        `yaml:"issuer"`
}

type APIRateLimitConfig struct {
	Requests int `yaml:"requests"`
	Window   int `yaml:"window"` // seconds
}

type PaginationConfig struct {
	DefaultSize int `yaml:"default_size"`
	MaxSize     int `yaml:"max_size"`
}

type NotificationsConfig struct {
	Workers   int         `yaml:"workers"`
	QueueSize int         `yaml:"queue_size"`
	SendRPS   float64     `yaml:"send_rps"`
	SendBurst int         `yaml:"send_burst"`
	Retry     RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type ExportConfig struct {
	SheetName string `yaml:"sheet_name"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"` // часовой пояс напоминаний
}

type TelegramConfig struct {
	Enabled           bool   `yaml:"enabled"`
	BotToken          string `yaml:"bot_token" env:"HABITS_BOT_TOKEN"`
	Debug             bool   `yaml:"debug"`
	RateLimitMessages int    `yaml:"rate_limit_messages"`
	RateLimitWindow   int    `yaml:"rate_limit_window"` // seconds
}

type DatabaseConfig struct {
	Driver       string       `yaml:"driver"`
	Path         string       `yaml:"path"`
	DSN          string       `yaml:"dsn" env:"HABITS_DATABASE_DSN"`
	MaxOpenConns int          `yaml:"max_open_conns"`
	Backup       BackupConfig `yaml:"backup"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"` // cron spec
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password" env:"HABITS_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE") {
		return errors.New("telegram bot token is required when telegram is enabled")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid app.timezone %q: %w", c.App.Timezone, err)
	}

	if len(c.API.Auth.JWTSecret) < 16 {
		return errors.New("api.auth.jwt_secret must be at least 16 characters")
	}

	if c.Pagination.DefaultSize > c.Pagination.MaxSize {
		return fmt.Errorf("pagination default_size %d exceeds max_size %d", c.Pagination.DefaultSize, c.Pagination.MaxSize)
	}

	return nil
}

// IsStaffEmail reports whether the email is listed in the staff section.
func (c *Config) IsStaffEmail(email string) bool {
	for _, s := range c.Staff {
		if strings.EqualFold(strings.TrimSpace(s), email) {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "habittracker"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = 24 * time.Hour
	}
	if c.API.Auth.Issuer == "" {
		c.API.Auth.Issuer = c.App.Name
	}
	if c.API.RateLimit.Requests == 0 {
		c.API.RateLimit.Requests = models.RateLimitRequests
	}
	if c.API.RateLimit.Window == 0 {
		c.API.RateLimit.Window = models.RateLimitWindow
	}
	if c.Telegram.RateLimitMessages == 0 {
		c.Telegram.RateLimitMessages = 20
	}
	if c.Telegram.RateLimitWindow == 0 {
		c.Telegram.RateLimitWindow = 60
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Pagination.DefaultSize == 0 {
		c.Pagination.DefaultSize = models.DefaultPageSize
	}
	if c.Pagination.MaxSize == 0 {
		c.Pagination.MaxSize = models.MaxPageSize
	}

	// Notification defaults
	if c.Notifications.Workers == 0 {
		c.Notifications.Workers = 2
	}
	if c.Notifications.QueueSize == 0 {
		c.Notifications.QueueSize = models.NotificationQueueSize
	}
	if c.Notifications.SendRPS == 0 {
		c.Notifications.SendRPS = 25
	}
	if c.Notifications.SendBurst == 0 {
		c.Notifications.SendBurst = 5
	}
	if c.Notifications.Retry.MaxRetries == 0 {
		c.Notifications.Retry.MaxRetries = 3
	}
	if c.Notifications.Retry.InitialDelay == 0 {
		c.Notifications.Retry.InitialDelay = time.Second
	}
	if c.Notifications.Retry.MaxDelay == 0 {
		c.Notifications.Retry.MaxDelay = 30 * time.Second
	}

	if c.Database.Backup.Schedule == "" {
		c.Database.Backup.Schedule = "@daily"
	}
	if c.Database.Backup.StoragePath == "" {
		c.Database.Backup.StoragePath = "backups"
	}

	if c.Exports.SheetName == "" {
		c.Exports.SheetName = "Привычки"
	}
}

// Location returns the configured reminder time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
