package users

import (
	"context"
	"errors"
	"net/http"

	"gig-payments/internal/domain/users"
	"gig-payments/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Store interface {
	User(ctx context.Context, id uint) (*users.User, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
}

type Handler struct {
	store Store
	log   *zap.Logger
}

func NewHandler(st Store, log *zap.Logger) *Handler {
	return &Handler{store: st, log: log}
}

func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, err := h.store.User(c.Request.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.log.Error("load user", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	unread, err := h.store.CountUnread(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("count unread notifications", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		User: UserDTO{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
		Payouts: PayoutsDTO{
			AccountConnected: user.StripeAccountID != nil && *user.StripeAccountID != "",
			Enabled:          user.PayoutsEnabled,
		},
		Notifications: NotificationsDTO{Unread: unread},
	})
}
