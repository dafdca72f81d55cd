package db

import (
	"context"
	"sync"

	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DBInstance *gorm.DB
	Once       sync.Once
	DBMu       sync.Mutex
)

type DBOptions func(*gorm.DB) error

func NewDB(ctx context.Context, dsn string, models []interface{}, opts ...DBOptions) (*gorm.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var InitErr error
	Once.Do(func() {
		if err := ctx.Err(); err != nil {
			InitErr = utils.WrapError(err, utils.CodeInternal, "DB initialization canceled")
			return
		}

		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			InitErr = utils.WrapError(err, utils.CodeInternal, "Failed to connect to database")
			return
		}

		for _, opt := range opts {
			if err := opt(db); err != nil {
				InitErr = utils.WrapError(err, utils.CodeInternal, "Failed to apply DB options")
				return
			}
		}

		select {
		case <-ctx.Done():
			InitErr = utils.WrapError(ctx.Err(), utils.CodeInternal, "db migration canceled")
			return
		default:
			if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
				InitErr = utils.WrapError(err, utils.CodeInternal, "Failed to migrate models")
				return
			}
		}

		DBMu.Lock()
		DBInstance = db
		DBMu.Unlock()
	})

	if InitErr != nil {
		return nil, InitErr
	}

	if DBInstance == nil {
		return nil, utils.NewError(utils.CodeInternal, "Database not initialized")
	}

	return DBInstance, nil
}

func CloseDB(log *logger.Logger) error {
	DBMu.Lock()
	defer DBMu.Unlock()

	if DBInstance == nil {
		return nil
	}

	sqlDB, err := DBInstance.DB()
	if err != nil {
		log.Error(context.Background()).WithFields("error", err).Logs("Failed to get DB handle for closing")
		return utils.WrapError(err, utils.CodeInternal, "Failed to close database")
	}

	if err := sqlDB.Close(); err != nil {
		log.Error(context.Background()).WithFields("error", err).Logs("PostgreSQL database close failed")
		return utils.WrapError(err, utils.CodeInternal, "Failed to close database")
	}
	log.Info(context.Background()).Logs("PostgreSQL database connection closed")
	DBInstance = nil
	return nil
}
