package stripewebhooks

import (
	"context"
	"time"

	"gig-payments/internal/domain/billing"
	"gig-payments/internal/store"

	"go.uber.org/zap"
)

const redriveBatch = 100

// Redriver periodically retries skipped events inside the deferred window and
// resumes applied events whose delivery was interrupted.
type Redriver struct {
	store      store.Store
	dispatcher *Dispatcher
	interval   time.Duration
	log        *zap.Logger
}

func NewRedriver(st store.Store, d *Dispatcher, interval time.Duration, log *zap.Logger) *Redriver {
	return &Redriver{
		store:      st,
		dispatcher: d,
		interval:   interval,
		log:        log.With(zap.String("component", "webhook_redriver")),
	}
}

func (r *Redriver) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.log.Info("webhook redrive disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := r.Sweep(ctx, now); err != nil {
				r.log.Error("webhook redrive sweep failed", zap.Error(err))
			} else if n > 0 {
				r.log.Info("webhook redrive sweep", zap.Int("events", n))
			}
		}
	}
}

// Sweep handles one batch and returns how many events it touched. Applied
// events are only resumed once they have been idle for a full interval so a
// delivery still in flight is left alone.
func (r *Redriver) Sweep(ctx context.Context, now time.Time) (int, error) {
	touched := 0

	applied, err := r.store.WebhookEvents(ctx, store.WebhookEventQuery{
		Status:        billing.WebhookEventApplied,
		UpdatedBefore: now.Add(-r.interval),
		Limit:         redriveBatch,
	})
	if err != nil {
		return touched, err
	}
	for i := range applied {
		row := &applied[i]
		if err := r.dispatcher.deliver(ctx, row); err != nil {
			r.log.Warn("resume delivery failed", zap.String("event_id", row.StripeEventID), zap.Error(err))
			continue
		}
		touched++
	}

	skipped, err := r.store.WebhookEvents(ctx, store.WebhookEventQuery{
		Status: billing.WebhookEventSkipped,
		Limit:  redriveBatch,
	})
	if err != nil {
		return touched, err
	}
	for i := range skipped {
		row := &skipped[i]
		log := r.log.With(zap.String("event_id", row.StripeEventID))

		if now.Sub(row.CreatedAt) >= r.dispatcher.window {
			err := r.store.TransitionWebhookEvent(ctx, row.ID, billing.WebhookEventSkipped, map[string]interface{}{
				"status":       billing.WebhookEventDropped,
				"processed_at": now,
			})
			if err != nil {
				log.Warn("drop expired event failed", zap.Error(err))
				continue
			}
			log.Warn("deferred window elapsed, event dropped")
			touched++
			continue
		}

		event, err := decodeEvent(row)
		if err != nil {
			log.Error("stored event unreadable", zap.Error(err))
			continue
		}
		handler, ok := r.dispatcher.handlers[event.Type]
		if !ok {
			continue
		}
		if err := r.dispatcher.process(ctx, event, []byte(row.Payload), handler, row); err != nil {
			log.Warn("redrive failed", zap.Error(err))
			continue
		}
		touched++
	}
	return touched, nil
}
