package notifications

import "time"

type Type string

const (
	TypePayment Type = "payment"
	TypePayout  Type = "payout"
	TypeAccount Type = "account"
)

// Notification is the durable copy of every message dispatched to a user. Only
// the Read flag changes after insert.
type Notification struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	Type   Type   `gorm:"type:varchar(20);not null" json:"type"`
	Title  string `gorm:"not null" json:"title"`
	Body   string `gorm:"type:text" json:"body"`
	Read   bool   `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"read"`

	LinkType string `gorm:"type:varchar(20)" json:"link_type,omitempty"`
	LinkID   *uint  `json:"link_id,omitempty"`

	SourceEventID string `gorm:"type:varchar(255);index" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
