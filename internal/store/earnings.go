package store

import (
	"context"

	"gig-payments/internal/domain/billing"
)

func (s *GormStore) CreateEarning(ctx context.Context, e *billing.Earning) error {
	return translate(s.db.WithContext(ctx).Create(e).Error)
}

func (s *GormStore) Earning(ctx context.Context, id uint) (*billing.Earning, error) {
	return first[billing.Earning](s.db.WithContext(ctx), "id = ?", id)
}

func (s *GormStore) EarningByTransfer(ctx context.Context, transferID string) (*billing.Earning, error) {
	return first[billing.Earning](s.db.WithContext(ctx), "stripe_transfer_id = ?", transferID)
}

func (s *GormStore) EarningForPayment(ctx context.Context, paymentID, workerID uint) (*billing.Earning, error) {
	return first[billing.Earning](s.db.WithContext(ctx), "payment_id = ? AND worker_id = ?", paymentID, workerID)
}

func (s *GormStore) EarningsForPayment(ctx context.Context, paymentID uint) ([]billing.Earning, error) {
	var earnings []billing.Earning
	err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("id").Find(&earnings).Error
	return earnings, translate(err)
}

func (s *GormStore) EarningsByWorker(ctx context.Context, workerID uint) ([]billing.Earning, error) {
	var earnings []billing.Earning
	err := s.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("date_earned DESC").
		Find(&earnings).Error
	return earnings, translate(err)
}

func (s *GormStore) UpdateEarning(ctx context.Context, id uint, updates map[string]interface{}) error {
	return update(s.db.WithContext(ctx), &billing.Earning{}, id, updates)
}
