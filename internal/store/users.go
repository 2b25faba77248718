package store

import (
	"context"

	"gig-payments/internal/domain/users"
)

func (s *GormStore) User(ctx context.Context, id uint) (*users.User, error) {
	return first[users.User](s.db.WithContext(ctx), "id = ?", id)
}

func (s *GormStore) UserByStripeAccount(ctx context.Context, accountID string) (*users.User, error) {
	return first[users.User](s.db.WithContext(ctx), "stripe_account_id = ?", accountID)
}

func (s *GormStore) UpdateUser(ctx context.Context, id uint, updates map[string]interface{}) error {
	return update(s.db.WithContext(ctx), &users.User{}, id, updates)
}
