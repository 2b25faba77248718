package store

import (
	"context"
	"errors"
	"fmt"

	"gig-payments/internal/domain/billing"
	"gig-payments/internal/domain/jobs"
	"gig-payments/internal/domain/notifications"
	"gig-payments/internal/domain/users"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Store is the persistence surface used by webhook reconciliation and the
// notification read API. Implementations returned by Transaction are bound to a
// single database transaction.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error

	PaymentByIntent(ctx context.Context, intentID string) (*billing.Payment, error)
	PaymentsByPayer(ctx context.Context, payerID uint) ([]billing.Payment, error)
	UpdatePayment(ctx context.Context, id uint, updates map[string]interface{}) error

	Job(ctx context.Context, id uint) (*jobs.Job, error)
	AdvanceJobStatus(ctx context.Context, id uint, from, to jobs.Status) (bool, error)

	CreateEarning(ctx context.Context, e *billing.Earning) error
	Earning(ctx context.Context, id uint) (*billing.Earning, error)
	EarningByTransfer(ctx context.Context, transferID string) (*billing.Earning, error)
	EarningForPayment(ctx context.Context, paymentID, workerID uint) (*billing.Earning, error)
	EarningsForPayment(ctx context.Context, paymentID uint) ([]billing.Earning, error)
	EarningsByWorker(ctx context.Context, workerID uint) ([]billing.Earning, error)
	UpdateEarning(ctx context.Context, id uint, updates map[string]interface{}) error

	User(ctx context.Context, id uint) (*users.User, error)
	UserByStripeAccount(ctx context.Context, accountID string) (*users.User, error)
	UpdateUser(ctx context.Context, id uint, updates map[string]interface{}) error

	CreateNotification(ctx context.Context, n *notifications.Notification) error
	ListNotifications(ctx context.Context, userID uint, q NotificationQuery) ([]notifications.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id uint) error

	WebhookEvent(ctx context.Context, stripeEventID string) (*billing.WebhookEvent, error)
	WebhookEventByID(ctx context.Context, id uint) (*billing.WebhookEvent, error)
	WebhookEvents(ctx context.Context, q WebhookEventQuery) ([]billing.WebhookEvent, error)
	CreateWebhookEvent(ctx context.Context, ev *billing.WebhookEvent) error
	UpdateWebhookEvent(ctx context.Context, id uint, updates map[string]interface{}) error
	TransitionWebhookEvent(ctx context.Context, id uint, from billing.WebhookEventStatus, updates map[string]interface{}) error
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translate maps gorm errors onto the package sentinels. Duplicate-key
// detection needs gorm.Config.TranslateError.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func first[T any](db *gorm.DB, query string, args ...interface{}) (*T, error) {
	var row T
	if err := db.Where(query, args...).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

func update(db *gorm.DB, model interface{}, id uint, updates map[string]interface{}) error {
	res := db.Model(model).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
