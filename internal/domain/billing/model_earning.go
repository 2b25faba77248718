package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

type EarningStatus string

const (
	EarningPending    EarningStatus = "pending"
	EarningProcessing EarningStatus = "processing"
	EarningPaid       EarningStatus = "paid"
	EarningFailed     EarningStatus = "failed"
)

// Earning is the worker's share of a completed Payment. A payment yields at most
// one earning per worker (idx_earnings_payment_worker).
type Earning struct {
	ID        uint `gorm:"primaryKey"`
	PaymentID uint `gorm:"not null;uniqueIndex:idx_earnings_payment_worker,priority:1"`
	JobID     uint `gorm:"not null;index"`
	WorkerID  uint `gorm:"not null;uniqueIndex:idx_earnings_payment_worker,priority:2;index"`

	GrossAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ServiceFee  decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	NetAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'usd'"`

	Status     EarningStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	DateEarned time.Time     `gorm:"not null"`
	DatePaid   *time.Time

	StripeTransferID *string `gorm:"column:stripe_transfer_id;uniqueIndex:idx_earnings_stripe_transfer_id"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
