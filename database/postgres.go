package database

import (
	"context"
	"fmt"
	"time"

	"github.com/yashrajoria/shopswift-api/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresConfig holds connection settings for the primary store.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectAttempts int
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone,
	)
}

// Connect opens the gorm connection, retrying with a linear backoff while
// the database comes up, and configures the pool.
func Connect(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.User == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("POSTGRES_USER and POSTGRES_DB must be set")
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 10
	}

	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var err error
	for i := 0; i < attempts; i++ {
		var db *gorm.DB
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
		if err == nil {
			sqlDB, poolErr := db.DB()
			if poolErr != nil {
				return nil, fmt.Errorf("failed to get sql.DB: %w", poolErr)
			}
			sqlDB.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 25))
			sqlDB.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 5))
			if cfg.ConnMaxLifetime > 0 {
				sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			} else {
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}

			if err = sqlDB.PingContext(ctx); err == nil {
				logger.Info("Connected to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
				return db, nil
			}
			_ = sqlDB.Close()
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 2 * time.Second):
		}
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", attempts, err)
}

// Migrate creates or updates the schema. Addresses and products come first
// so the order foreign keys can reference them.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Product{},
		&models.Price{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
