package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	Sync      SyncConfig
	Upstream  UpstreamConfig
	Archive   ArchiveConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// SyncConfig holds the sales sync loop parameters
type SyncConfig struct {
	DefaultWindowDays   int           // calendar days covered by scheduled runs
	PageSize            int           // upstream page size (limit parameter)
	MaxRequests         int           // hard cap on upstream requests per run
	MaxConsecutiveEmpty int           // empty-page streak that ends a run
	InterPageDelay      time.Duration // fixed pause between successive pages
	RunTimeout          time.Duration // bound on one whole run
}

// UpstreamConfig holds Everest API client settings
type UpstreamConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxAttempts   int
	RetryInterval time.Duration
	DateField     string // upstream date column the window filters on
}

// ArchiveConfig holds the optional S3-compatible raw-page mirror settings
type ArchiveConfig struct {
	Enabled      bool
	Endpoint     string // empty for AWS S3, custom for MinIO and friends
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// SchedulerConfig holds the scheduled sync trigger configuration
type SchedulerConfig struct {
	Enabled      bool
	CronSchedule string // evaluated in the business timezone
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTLP gRPC endpoint (e.g., "localhost:4317")
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with POSSYNC_ prefix (e.g., POSSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("POSSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Sync: SyncConfig{
			DefaultWindowDays:   v.GetInt("sync.default_window_days"),
			PageSize:            v.GetInt("sync.page_size"),
			MaxRequests:         v.GetInt("sync.max_requests"),
			MaxConsecutiveEmpty: v.GetInt("sync.max_consecutive_empty"),
			InterPageDelay:      v.GetDuration("sync.inter_page_delay"),
			RunTimeout:          v.GetDuration("sync.run_timeout"),
		},
		Upstream: UpstreamConfig{
			BaseURL:       v.GetString("upstream.base_url"),
			Timeout:       v.GetDuration("upstream.timeout"),
			MaxAttempts:   v.GetInt("upstream.max_attempts"),
			RetryInterval: v.GetDuration("upstream.retry_interval"),
			DateField:     v.GetString("upstream.date_field"),
		},
		Archive: ArchiveConfig{
			Enabled:      v.GetBool("archive.enabled"),
			Endpoint:     v.GetString("archive.endpoint"),
			Region:       v.GetString("archive.region"),
			Bucket:       v.GetString("archive.bucket"),
			AccessKey:    v.GetString("archive.access_key"),
			SecretKey:    v.GetString("archive.secret_key"),
			UsePathStyle: v.GetBool("archive.use_path_style"),
		},
		Scheduler: SchedulerConfig{
			Enabled:      v.GetBool("scheduler.enabled"),
			CronSchedule: v.GetString("scheduler.cron_schedule"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "possync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "possync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Sync.DefaultWindowDays == 0 {
		cfg.Sync.DefaultWindowDays = 3
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 100
	}
	if cfg.Sync.MaxRequests == 0 {
		cfg.Sync.MaxRequests = 500
	}
	if cfg.Sync.MaxConsecutiveEmpty == 0 {
		cfg.Sync.MaxConsecutiveEmpty = 3
	}
	if cfg.Sync.InterPageDelay == 0 {
		cfg.Sync.InterPageDelay = 500 * time.Millisecond
	}
	if cfg.Sync.RunTimeout == 0 {
		cfg.Sync.RunTimeout = 30 * time.Minute
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 30 * time.Second
	}
	if cfg.Upstream.MaxAttempts == 0 {
		cfg.Upstream.MaxAttempts = 3
	}
	if cfg.Upstream.RetryInterval == 0 {
		cfg.Upstream.RetryInterval = time.Second
	}
	if cfg.Upstream.DateField == "" {
		cfg.Upstream.DateField = "shiftDate"
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
	}
	if cfg.Scheduler.CronSchedule == "" {
		// 05:00 every day, evaluated in the business timezone
		cfg.Scheduler.CronSchedule = "0 5 * * *"
	}
	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "possync"
	}
	// Note: Insecure defaults to false for safety (TLS enabled by default)
	// DBTraceEnabled defaults to false (needs explicit enable)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	// Validate sync loop bounds
	if c.Sync.MaxRequests < 1 {
		return fmt.Errorf("sync.max_requests must be at least 1")
	}
	if c.Sync.MaxConsecutiveEmpty < 1 {
		return fmt.Errorf("sync.max_consecutive_empty must be at least 1")
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 500 {
		return fmt.Errorf("sync.page_size must be between 1 and 500, got %d", c.Sync.PageSize)
	}
	if c.Sync.DefaultWindowDays < 1 {
		return fmt.Errorf("sync.default_window_days must be at least 1")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Upstream.BaseURL == "" {
			return fmt.Errorf("upstream.base_url is required in production")
		}
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required when the archive mirror is enabled")
		}
		if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
			return fmt.Errorf("archive credentials are required when the archive mirror is enabled")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
