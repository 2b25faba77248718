package store

import (
	"context"
	"time"

	"gig-payments/internal/domain/billing"
)

type WebhookEventQuery struct {
	Status        billing.WebhookEventStatus
	CreatedAfter  time.Time
	UpdatedBefore time.Time
	Limit         int
}

func (s *GormStore) WebhookEvent(ctx context.Context, stripeEventID string) (*billing.WebhookEvent, error) {
	return first[billing.WebhookEvent](s.db.WithContext(ctx), "stripe_event_id = ?", stripeEventID)
}

func (s *GormStore) WebhookEventByID(ctx context.Context, id uint) (*billing.WebhookEvent, error) {
	return first[billing.WebhookEvent](s.db.WithContext(ctx), "id = ?", id)
}

func (s *GormStore) WebhookEvents(ctx context.Context, q WebhookEventQuery) ([]billing.WebhookEvent, error) {
	db := s.db.WithContext(ctx)
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if !q.CreatedAfter.IsZero() {
		db = db.Where("created_at > ?", q.CreatedAfter)
	}
	if !q.UpdatedBefore.IsZero() {
		db = db.Where("updated_at < ?", q.UpdatedBefore)
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	var rows []billing.WebhookEvent
	err := db.Order("created_at ASC, id ASC").Limit(q.Limit).Find(&rows).Error
	return rows, translate(err)
}

// CreateWebhookEvent fails with ErrConflict when the provider event id was
// already recorded.
func (s *GormStore) CreateWebhookEvent(ctx context.Context, ev *billing.WebhookEvent) error {
	return translate(s.db.WithContext(ctx).Create(ev).Error)
}

func (s *GormStore) UpdateWebhookEvent(ctx context.Context, id uint, updates map[string]interface{}) error {
	return update(s.db.WithContext(ctx), &billing.WebhookEvent{}, id, updates)
}

// TransitionWebhookEvent applies updates only while the row is still in status
// from; a concurrent transition makes it return ErrConflict.
func (s *GormStore) TransitionWebhookEvent(ctx context.Context, id uint, from billing.WebhookEventStatus, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).
		Model(&billing.WebhookEvent{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
