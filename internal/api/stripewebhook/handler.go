package stripewebhooks

import (
	"errors"
	"io"
	"net/http"

	stripeinfra "gig-payments/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBodyBytes = 65536

type Handler struct {
	verifier   *stripeinfra.Verifier
	dispatcher *Dispatcher
	log        *zap.Logger
}

func NewHandler(verifier *stripeinfra.Verifier, dispatcher *Dispatcher, log *zap.Logger) *Handler {
	log = log.With(zap.String("component", "stripe_webhook"))
	if verifier.Skips() {
		log.Warn("STRIPE_WEBHOOK_SECRET is empty, webhook signatures are NOT verified")
	}
	return &Handler{verifier: verifier, dispatcher: dispatcher, log: log}
}

// Webhook answers 200 once the event is applied, ignored or recorded as
// skipped, 400 when the delivery cannot be authenticated and 500 when the
// provider should retry.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error reading request body"})
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log.Warn("webhook verification failed", zap.Error(err))
		if errors.Is(err, stripeinfra.ErrMalformedEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Malformed event"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "Signature verification failed"})
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), event, payload); err != nil {
		h.log.Error("webhook dispatch failed", zap.String("event_id", event.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Webhook handler failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
