package services

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Keepitcity/proof/repository"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// OpenStore connects the configured store and migrates it. It returns nil
// with no error when persistence is switched off.
func OpenStore(cfg DatabaseConfig, teamDomain string) (repository.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres:
		if cfg.URL == "" {
			return nil, fmt.Errorf("database.url is required for the postgres driver")
		}
		db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
			Logger:         logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
			TranslateError: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

		repo := repository.NewGORMRepository(db, teamDomain)
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		slog.Info("Connected to database", "driver", DriverPostgres)
		return repo, nil

	case DriverSQLite:
		repo, err := repository.NewSQLiteRepository(cfg.SQLitePath, teamDomain)
		if err != nil {
			return nil, err
		}
		slog.Info("Connected to database", "driver", DriverSQLite, "path", cfg.SQLitePath)
		return repo, nil

	case "", "none":
		slog.Warn("Database driver not configured, running without persistence")
		return nil, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}
