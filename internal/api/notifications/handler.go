package notifications

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"gig-payments/internal/domain/notifications"
	"gig-payments/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Store interface {
	ListNotifications(ctx context.Context, userID uint, q store.NotificationQuery) ([]notifications.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id uint) error
}

type Handler struct {
	store Store
	log   *zap.Logger
}

func NewHandler(st Store, log *zap.Logger) *Handler {
	return &Handler{store: st, log: log}
}

// List returns the caller's notifications, newest first.
// Query: unread=1, limit (default 20, max 100), offset.
func (h *Handler) List(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}
	unread := c.Query("unread")

	items, err := h.store.ListNotifications(c.Request.Context(), userID, store.NotificationQuery{
		UnreadOnly: unread == "1" || unread == "true",
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.log.Error("list notifications", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notifications"})
		return
	}
	if items == nil {
		items = []notifications.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	n, err := h.store.CountUnread(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("count unread notifications", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *Handler) MarkRead(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}

	err = h.store.MarkNotificationRead(c.Request.Context(), userID, uint(id))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	case err != nil:
		h.log.Error("mark notification read", zap.Uint("user_id", userID), zap.Uint64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}
