package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	stripewebhooks "gig-payments/internal/api/stripewebhook"
	"gig-payments/internal/domain/billing"
	"gig-payments/internal/realtime"
	"gig-payments/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EventStore interface {
	WebhookEvents(ctx context.Context, q store.WebhookEventQuery) ([]billing.WebhookEvent, error)
}

type Redriver interface {
	Redrive(ctx context.Context, id uint) error
}

type AdminWebhookEvent struct {
	ID            uint       `json:"id"`
	StripeEventID string     `json:"stripe_event_id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	Delivered     int        `json:"delivered"`
	LastError     string     `json:"last_error,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     string     `json:"created_at"`
}

type AdminConnection struct {
	ID       string `json:"id"`
	UserID   uint   `json:"user_id"`
	State    string `json:"state"`
	LastSeen string `json:"last_seen"`
}

type Handler struct {
	events   EventStore
	redriver Redriver
	registry realtime.Registry
	log      *zap.Logger
}

func NewHandler(events EventStore, redriver Redriver, reg realtime.Registry, log *zap.Logger) *Handler {
	return &Handler{events: events, redriver: redriver, registry: reg, log: log}
}

func (h *Handler) ListWebhookEvents(c *gin.Context) {
	q := store.WebhookEventQuery{Status: billing.WebhookEventStatus(c.Query("status"))}
	switch q.Status {
	case "", billing.WebhookEventApplied, billing.WebhookEventCompleted, billing.WebhookEventSkipped, billing.WebhookEventDropped:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		q.Limit = n
	}

	rows, err := h.events.WebhookEvents(c.Request.Context(), q)
	if err != nil {
		h.log.Error("list webhook events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load webhook events"})
		return
	}

	result := make([]AdminWebhookEvent, 0, len(rows))
	for _, r := range rows {
		result = append(result, AdminWebhookEvent{
			ID:            r.ID,
			StripeEventID: r.StripeEventID,
			Type:          r.Type,
			Status:        string(r.Status),
			Attempts:      r.Attempts,
			Delivered:     r.Delivered,
			LastError:     r.LastError,
			ProcessedAt:   r.ProcessedAt,
			CreatedAt:     r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) RedriveWebhookEvent(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook event id"})
		return
	}

	err = h.redriver.Redrive(c.Request.Context(), uint(id))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Webhook event not found"})
		return
	case errors.Is(err, stripewebhooks.ErrNotRedrivable):
		c.JSON(http.StatusConflict, gin.H{"error": "Webhook event already completed"})
		return
	case err != nil:
		h.log.Error("redrive webhook event", zap.Uint64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Redrive failed"})
		return
	}
	h.log.Info("webhook event redriven by admin", zap.Uint64("id", id), zap.Uint("admin_id", c.GetUint("user_id")))
	c.JSON(http.StatusOK, gin.H{"status": "redriven"})
}

func (h *Handler) ListConnections(c *gin.Context) {
	clients := h.registry.Snapshot()
	result := make([]AdminConnection, 0, len(clients))
	for _, cl := range clients {
		result = append(result, AdminConnection{
			ID:       cl.ID,
			UserID:   cl.UserID,
			State:    cl.State().String(),
			LastSeen: cl.LastSeen().UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(result), "connections": result})
}
