package database

import (
	"gig-payments/internal/domain/billing"
	"gig-payments/internal/domain/jobs"
	"gig-payments/internal/domain/notifications"
	"gig-payments/internal/domain/users"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Models lists every table owned or read by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&users.User{},
		&jobs.Job{},
		&billing.Payment{},
		&billing.Earning{},
		&billing.WebhookEvent{},
		&notifications.Notification{},
	}
}

func InitDB(dsn string, log *zap.Logger) *gorm.DB {
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	DB = db

	if err := DB.AutoMigrate(Models()...); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	log.Info("connected and migrated")
	return DB
}
