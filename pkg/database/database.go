package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tair/price-tracker/pkg/logger"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Path is the database file used by the sqlite driver
	Path string
}

// DSN builds the driver specific data source name
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		// foreign keys are off by default in sqlite
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.Path)
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// NewGormConnection opens a gorm connection for the configured driver
func NewGormConnection(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case DriverSQLite, "":
		cfg.Driver = DriverSQLite
		if cfg.Path == "" {
			cfg.Path = "price_tracker.db"
		}
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Logger.Info().
		Str("driver", cfg.Driver).
		Msg("Successfully connected to database")
	return db, nil
}
