package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"face-door-lock/config"
	"face-door-lock/internal/core/models"

	"github.com/glebarez/sqlite" // pure Go SQLite driver
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the process wide database connection
var DB *gorm.DB

// Initialize opens the configured database and runs the migrations
func Initialize(cfg *config.Config) error {
	if cfg.DB.File != "" && cfg.DB.File != ":memory:" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			log.Errorf("Failed to create database directory '%s': %v", dbDir, err)
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Infof("Connecting to database: %s", cfg.DB.File)
	conn, err := Open(cfg.DB.File)
	if err != nil {
		return err
	}
	DB = conn
	log.Info("Database connection established successfully")
	return nil
}

// Open connects to a SQLite file (or ":memory:") and migrates the schema
func Open(file string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(sqlite.Open(file), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Errorf("Failed to connect to database: %v", err)
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" a single database
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	log.Debug("Running database migrations...")
	if err := conn.AutoMigrate(
		&models.Identity{},
		&models.FaceEncoding{},
		&models.AccessEvent{},
	); err != nil {
		log.Errorf("Database migration failed: %v", err)
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return conn, nil
}

// GetDB returns the initialized connection
func GetDB() (*gorm.DB, error) {
	if DB == nil {
		return nil, fmt.Errorf("database is not initialized")
	}
	return DB, nil
}

// Close releases the connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}
