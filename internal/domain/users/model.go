package users

import "time"

type User struct {
	ID    uint `gorm:"primaryKey"`
	Name  string
	Email string `gorm:"not null;uniqueIndex:idx_users_email"`
	Role  string

	// Connected account used as payout destination.
	StripeAccountID *string `gorm:"column:stripe_account_id;uniqueIndex:idx_users_stripe_account_id"`
	PayoutsEnabled  bool    `gorm:"column:payouts_enabled;not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
