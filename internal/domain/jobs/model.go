package jobs

import "time"

type Status string

const (
	StatusOpen       Status = "open"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Job is owned by the marketplace CRUD layer. Reconciliation reads it to target
// notifications and advances Status from assigned to in_progress once paid.
type Job struct {
	ID       uint   `gorm:"primaryKey"`
	Title    string `gorm:"not null"`
	Status   Status `gorm:"type:varchar(20);not null;default:'open'"`
	PosterID uint   `gorm:"not null;index"`
	WorkerID *uint  `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
