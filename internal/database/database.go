package database

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/config"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/model"
)

// Connect opens the Postgres connection pool, retrying with exponential
// backoff so the service survives a database that is still starting up.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}

	var db *gorm.DB

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxElapsedTime = time.Minute

	err := backoff.Retry(func() error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: logger.Default.LogMode(logLevel),
		})
		return openErr
	}, policy)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate ensures the pgvector extension exists and creates or updates
// the pipeline tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}

	return db.AutoMigrate(
		&model.Document{},
		&model.UploadJob{},
		&model.DocumentChunk{},
	)
}
