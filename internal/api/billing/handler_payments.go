package billing

import (
	"context"
	"net/http"
	"time"

	"gig-payments/internal/domain/billing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Store interface {
	PaymentsByPayer(ctx context.Context, payerID uint) ([]billing.Payment, error)
	EarningsByWorker(ctx context.Context, workerID uint) ([]billing.Earning, error)
}

type PaymentResponse struct {
	ID        uint      `json:"id"`
	JobID     *uint     `json:"job_id,omitempty"`
	WorkerID  *uint     `json:"worker_id,omitempty"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type EarningResponse struct {
	ID          uint       `json:"id"`
	PaymentID   uint       `json:"payment_id"`
	JobID       uint       `json:"job_id"`
	GrossAmount string     `json:"gross_amount"`
	ServiceFee  string     `json:"service_fee"`
	NetAmount   string     `json:"net_amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	DateEarned  time.Time  `json:"date_earned"`
	DatePaid    *time.Time `json:"date_paid,omitempty"`
}

type Handler struct {
	store Store
	log   *zap.Logger
}

func NewHandler(st Store, log *zap.Logger) *Handler {
	return &Handler{store: st, log: log}
}

func (h *Handler) GetPaymentHistory(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	payments, err := h.store.PaymentsByPayer(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("load payments", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	result := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		result = append(result, PaymentResponse{
			ID:        p.ID,
			JobID:     p.JobID,
			WorkerID:  p.WorkerID,
			Amount:    p.Amount.StringFixed(2),
			Currency:  p.Currency,
			Status:    string(p.Status),
			CreatedAt: p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetEarnings(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	earnings, err := h.store.EarningsByWorker(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("load earnings", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load earnings"})
		return
	}

	result := make([]EarningResponse, 0, len(earnings))
	for _, e := range earnings {
		result = append(result, EarningResponse{
			ID:          e.ID,
			PaymentID:   e.PaymentID,
			JobID:       e.JobID,
			GrossAmount: e.GrossAmount.StringFixed(2),
			ServiceFee:  e.ServiceFee.StringFixed(2),
			NetAmount:   e.NetAmount.StringFixed(2),
			Currency:    e.Currency,
			Status:      string(e.Status),
			DateEarned:  e.DateEarned,
			DatePaid:    e.DatePaid,
		})
	}
	c.JSON(http.StatusOK, result)
}
