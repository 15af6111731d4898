package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/minerva-intel/minerva/internal/config"
	"github.com/minerva-intel/minerva/pkg/database"
	"github.com/minerva-intel/minerva/pkg/models"
)

// NewDB returns a migrated database connection for the configured driver.
// PostgreSQL is the server driver; SQLite backs single-user local mode.
func NewDB(cfg *config.Config, log hclog.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Database.Driver {
	case "", "postgres":
		db, err = database.Connect(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, log)

	case "sqlite":
		// Zero-config local mode promises the database file is created;
		// sqlite won't create the containing directory itself.
		if dir := filepath.Dir(cfg.Database.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("error creating data directory: %w", err)
			}
		}
		gormConfig := &gorm.Config{TranslateError: true}
		if log != nil {
			gormConfig.Logger = database.NewGormLogger(log.Named("gorm"))
		} else {
			gormConfig.Logger = logger.Default.LogMode(logger.Silent)
		}
		db, err = gorm.Open(sqlite.Open(cfg.Database.Path), gormConfig)

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := models.SetupJoinTables(db); err != nil {
		return nil, fmt.Errorf("error setting up join tables: %w", err)
	}

	return db, nil
}

// Migrate runs schema auto-migration for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.ModelsToAutoMigrate()...); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}
	return nil
}
