package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lethai-bot/internal/config"
	"lethai-bot/internal/models"
)

// Connect opens the user database. SQLite is the default and keeps the
// on-disk layout of the original users.db; Postgres is available for
// deployments that already run one.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.ApprovalIntent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	zap.L().Info("Connected to database", zap.String("driver", cfg.DatabaseDriver))
	return db, nil
}
