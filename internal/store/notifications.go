package store

import (
	"context"

	"gig-payments/internal/domain/notifications"
)

type NotificationQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

func (q NotificationQuery) normalized() NotificationQuery {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func (s *GormStore) CreateNotification(ctx context.Context, n *notifications.Notification) error {
	return translate(s.db.WithContext(ctx).Create(n).Error)
}

func (s *GormStore) ListNotifications(ctx context.Context, userID uint, q NotificationQuery) ([]notifications.Notification, error) {
	q = q.normalized()
	db := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if q.UnreadOnly {
		db = db.Where("read = ?", false)
	}
	var rows []notifications.Notification
	err := db.Order("created_at DESC, id DESC").Limit(q.Limit).Offset(q.Offset).Find(&rows).Error
	return rows, translate(err)
}

func (s *GormStore) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&notifications.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&n).Error
	return n, translate(err)
}

// MarkNotificationRead is scoped to the owner; another user's id reads as not found.
func (s *GormStore) MarkNotificationRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).
		Model(&notifications.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
