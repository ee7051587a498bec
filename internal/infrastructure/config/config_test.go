package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"POSSYNC_APP_NAME":                os.Getenv("POSSYNC_APP_NAME"),
		"POSSYNC_APP_ENV":                 os.Getenv("POSSYNC_APP_ENV"),
		"POSSYNC_DATABASE_HOST":           os.Getenv("POSSYNC_DATABASE_HOST"),
		"POSSYNC_DATABASE_PORT":           os.Getenv("POSSYNC_DATABASE_PORT"),
		"POSSYNC_DATABASE_USER":           os.Getenv("POSSYNC_DATABASE_USER"),
		"POSSYNC_DATABASE_PASSWORD":       os.Getenv("POSSYNC_DATABASE_PASSWORD"),
		"POSSYNC_DATABASE_DBNAME":         os.Getenv("POSSYNC_DATABASE_DBNAME"),
		"POSSYNC_DATABASE_SSLMODE":        os.Getenv("POSSYNC_DATABASE_SSLMODE"),
		"POSSYNC_DATABASE_MAX_OPEN_CONNS": os.Getenv("POSSYNC_DATABASE_MAX_OPEN_CONNS"),
		"POSSYNC_DATABASE_MAX_IDLE_CONNS": os.Getenv("POSSYNC_DATABASE_MAX_IDLE_CONNS"),
		"POSSYNC_SYNC_PAGE_SIZE":          os.Getenv("POSSYNC_SYNC_PAGE_SIZE"),
		"POSSYNC_SYNC_MAX_REQUESTS":       os.Getenv("POSSYNC_SYNC_MAX_REQUESTS"),
		"POSSYNC_SYNC_INTER_PAGE_DELAY":   os.Getenv("POSSYNC_SYNC_INTER_PAGE_DELAY"),
		"POSSYNC_UPSTREAM_BASE_URL":       os.Getenv("POSSYNC_UPSTREAM_BASE_URL"),
		"POSSYNC_UPSTREAM_DATE_FIELD":     os.Getenv("POSSYNC_UPSTREAM_DATE_FIELD"),
		"POSSYNC_ARCHIVE_ENABLED":         os.Getenv("POSSYNC_ARCHIVE_ENABLED"),
		"POSSYNC_ARCHIVE_BUCKET":          os.Getenv("POSSYNC_ARCHIVE_BUCKET"),
		"POSSYNC_ARCHIVE_ACCESS_KEY":      os.Getenv("POSSYNC_ARCHIVE_ACCESS_KEY"),
		"POSSYNC_ARCHIVE_SECRET_KEY":      os.Getenv("POSSYNC_ARCHIVE_SECRET_KEY"),
		"POSSYNC_SCHEDULER_CRON_SCHEDULE": os.Getenv("POSSYNC_SCHEDULER_CRON_SCHEDULE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "possync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "possync", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)

		assert.Equal(t, 3, cfg.Sync.DefaultWindowDays)
		assert.Equal(t, 100, cfg.Sync.PageSize)
		assert.Equal(t, 500, cfg.Sync.MaxRequests)
		assert.Equal(t, 3, cfg.Sync.MaxConsecutiveEmpty)
		assert.Equal(t, 500*time.Millisecond, cfg.Sync.InterPageDelay)
		assert.Equal(t, 30*time.Minute, cfg.Sync.RunTimeout)

		assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, 3, cfg.Upstream.MaxAttempts)
		assert.Equal(t, "shiftDate", cfg.Upstream.DateField)

		assert.False(t, cfg.Archive.Enabled)
		assert.Equal(t, "0 5 * * *", cfg.Scheduler.CronSchedule)
	})

	t.Run("loads values from environment variables with POSSYNC prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("POSSYNC_APP_NAME", "test-sync")
		os.Setenv("POSSYNC_DATABASE_HOST", "testdb.local")
		os.Setenv("POSSYNC_DATABASE_PORT", "5433")
		os.Setenv("POSSYNC_SYNC_PAGE_SIZE", "50")
		os.Setenv("POSSYNC_SYNC_MAX_REQUESTS", "200")
		os.Setenv("POSSYNC_SYNC_INTER_PAGE_DELAY", "250ms")
		os.Setenv("POSSYNC_UPSTREAM_BASE_URL", "https://api.example.com")
		os.Setenv("POSSYNC_UPSTREAM_DATE_FIELD", "saleDate")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-sync", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 50, cfg.Sync.PageSize)
		assert.Equal(t, 200, cfg.Sync.MaxRequests)
		assert.Equal(t, 250*time.Millisecond, cfg.Sync.InterPageDelay)
		assert.Equal(t, "https://api.example.com", cfg.Upstream.BaseURL)
		assert.Equal(t, "saleDate", cfg.Upstream.DateField)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("POSSYNC_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("POSSYNC_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates page size bounds", func(t *testing.T) {
		clearEnv()
		os.Setenv("POSSYNC_SYNC_PAGE_SIZE", "1000")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.page_size")
	})

	t.Run("archive requires bucket and credentials when enabled", func(t *testing.T) {
		clearEnv()
		os.Setenv("POSSYNC_ARCHIVE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive.bucket")

		os.Setenv("POSSYNC_ARCHIVE_BUCKET", "raw-pages")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive credentials")

		os.Setenv("POSSYNC_ARCHIVE_ACCESS_KEY", "ak")
		os.Setenv("POSSYNC_ARCHIVE_SECRET_KEY", "sk")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Archive.Enabled)
		assert.Equal(t, "raw-pages", cfg.Archive.Bucket)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"POSSYNC_APP_ENV":           os.Getenv("POSSYNC_APP_ENV"),
		"POSSYNC_DATABASE_PASSWORD": os.Getenv("POSSYNC_DATABASE_PASSWORD"),
		"POSSYNC_DATABASE_SSLMODE":  os.Getenv("POSSYNC_DATABASE_SSLMODE"),
		"POSSYNC_UPSTREAM_BASE_URL": os.Getenv("POSSYNC_UPSTREAM_BASE_URL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("POSSYNC_APP_ENV", "production")
		os.Setenv("POSSYNC_DATABASE_SSLMODE", "require")
		os.Setenv("POSSYNC_UPSTREAM_BASE_URL", "https://api.everestpos.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("POSSYNC_APP_ENV", "production")
		os.Setenv("POSSYNC_DATABASE_PASSWORD", "secure-password")
		os.Setenv("POSSYNC_DATABASE_SSLMODE", "disable")
		os.Setenv("POSSYNC_UPSTREAM_BASE_URL", "https://api.everestpos.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires upstream.base_url in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("POSSYNC_APP_ENV", "production")
		os.Setenv("POSSYNC_DATABASE_PASSWORD", "secure-password")
		os.Setenv("POSSYNC_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream.base_url is required in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		os.Setenv("POSSYNC_APP_ENV", "production")
		os.Setenv("POSSYNC_DATABASE_PASSWORD", "secure-password")
		os.Setenv("POSSYNC_DATABASE_SSLMODE", "require")
		os.Setenv("POSSYNC_UPSTREAM_BASE_URL", "https://api.everestpos.com")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("handles empty password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.NotEmpty(t, dsn)
	})
}
