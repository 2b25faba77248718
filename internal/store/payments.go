package store

import (
	"context"

	"gig-payments/internal/domain/billing"
	"gig-payments/internal/domain/jobs"
)

func (s *GormStore) PaymentByIntent(ctx context.Context, intentID string) (*billing.Payment, error) {
	return first[billing.Payment](s.db.WithContext(ctx), "stripe_payment_intent_id = ?", intentID)
}

func (s *GormStore) PaymentsByPayer(ctx context.Context, payerID uint) ([]billing.Payment, error) {
	var payments []billing.Payment
	err := s.db.WithContext(ctx).
		Where("payer_id = ?", payerID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, translate(err)
}

func (s *GormStore) UpdatePayment(ctx context.Context, id uint, updates map[string]interface{}) error {
	return update(s.db.WithContext(ctx), &billing.Payment{}, id, updates)
}

func (s *GormStore) Job(ctx context.Context, id uint) (*jobs.Job, error) {
	return first[jobs.Job](s.db.WithContext(ctx), "id = ?", id)
}

// AdvanceJobStatus moves a job from one status to another and reports whether
// the row was in the expected status.
func (s *GormStore) AdvanceJobStatus(ctx context.Context, id uint, from, to jobs.Status) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&jobs.Job{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}
