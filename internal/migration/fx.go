package migration

import (
	"github.com/pagehub/billing/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		// Embedded migrations target postgres. Other dialects (sqlite in
		// tests and local scratch setups) build their schema elsewhere.
		if cfg.DBType != "postgres" {
			log.Warn("skipping migrations for non-postgres driver",
				zap.String("driver", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
