package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is a charge from a job poster to the platform. Rows are created by the
// checkout flow; afterwards only webhook reconciliation changes them.
type Payment struct {
	ID       uint `gorm:"primaryKey"`
	PayerID  uint `gorm:"not null;index"`
	WorkerID *uint
	JobID    *uint `gorm:"index"`

	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency string          `gorm:"type:varchar(3);not null;default:'usd'"`
	Status   PaymentStatus   `gorm:"type:varchar(20);not null;default:'pending'"`

	StripePaymentIntentID string            `gorm:"column:stripe_payment_intent_id;not null;uniqueIndex:idx_payments_stripe_payment_intent_id"`
	Metadata              map[string]string `gorm:"serializer:json;type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
