// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled  bool
	DBSystem string // Database system name (default: "postgresql")
}

// RegisterDBTracing registers the otelgorm plugin on the given GORM instance.
// Query variables are always excluded from spans; raw sale payloads routinely
// pass through these queries and must not leak into traces.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("database tracing disabled, skipping otelgorm registration")
		return nil
	}

	dbName := cfg.DBSystem
	if dbName == "" {
		dbName = "postgresql"
	}

	plugin := otelgorm.NewPlugin(
		otelgorm.WithDBName(dbName),
		otelgorm.WithoutQueryVariables(),
	)
	if err := db.Use(plugin); err != nil {
		return err
	}

	logger.Info("database tracing enabled", zap.String("db_system", dbName))
	return nil
}
