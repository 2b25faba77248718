package stripewebhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gig-payments/internal/domain/billing"
	"gig-payments/internal/metrics"
	"gig-payments/internal/notify"
	"gig-payments/internal/reconcile"
	"gig-payments/internal/store"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// ErrNotRedrivable is returned when an operator asks to redrive an event that
// already completed.
var ErrNotRedrivable = errors.New("webhook event already completed")

// Outcomes reported in webhook_events_total.
const (
	outcomeApplied   = "applied"
	outcomeIgnored   = "ignored"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"
	outcomeDropped   = "dropped"
	outcomeFailed    = "failed"
)

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) (bool, error)
}

type Options struct {
	// How long an event whose target record is missing stays eligible for
	// redrive. Zero drops it on first sight.
	DeferredWindow time.Duration
	Log            *zap.Logger
}

// Dispatcher routes verified events to their reconcile handler. Every routed
// event is recorded in webhook_events so a redelivery of the same id is
// acknowledged without effect.
type Dispatcher struct {
	store    store.Store
	notifier Notifier
	handlers map[stripe.EventType]reconcile.Handler
	window   time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewDispatcher(st store.Store, notifier Notifier, handlers map[stripe.EventType]reconcile.Handler, opts Options) *Dispatcher {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	table := make(map[stripe.EventType]reconcile.Handler, len(handlers))
	for typ, h := range handlers {
		table[typ] = h
	}
	return &Dispatcher{
		store:    st,
		notifier: notifier,
		handlers: table,
		window:   opts.DeferredWindow,
		now:      time.Now,
		log:      log.With(zap.String("component", "webhook_dispatcher")),
	}
}

// Dispatch returns nil when the event may be acknowledged to the provider.
// A non-nil error means the provider should retry.
func (d *Dispatcher) Dispatch(ctx context.Context, event stripe.Event, payload []byte) error {
	log := d.log.With(zap.String("event_id", event.ID), zap.String("type", string(event.Type)))

	handler, ok := d.handlers[event.Type]
	if !ok {
		log.Info("unhandled event type")
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), outcomeIgnored).Inc()
		return nil
	}

	prior, err := d.store.WebhookEvent(ctx, event.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return d.process(ctx, event, payload, handler, nil)
	case err != nil:
		return fmt.Errorf("load webhook event %s: %w", event.ID, err)
	}

	switch prior.Status {
	case billing.WebhookEventApplied:
		log.Info("resuming delivery for applied event")
		return d.deliver(ctx, prior)
	case billing.WebhookEventSkipped:
		return d.process(ctx, event, payload, handler, prior)
	default:
		log.Info("duplicate event", zap.String("status", string(prior.Status)))
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), outcomeDuplicate).Inc()
		return nil
	}
}

// Redrive reprocesses a recorded event regardless of its deferred window.
func (d *Dispatcher) Redrive(ctx context.Context, id uint) error {
	row, err := d.store.WebhookEventByID(ctx, id)
	if err != nil {
		return err
	}
	switch row.Status {
	case billing.WebhookEventCompleted:
		return ErrNotRedrivable
	case billing.WebhookEventApplied:
		return d.deliver(ctx, row)
	}

	event, err := decodeEvent(row)
	if err != nil {
		return err
	}
	handler, ok := d.handlers[event.Type]
	if !ok {
		return fmt.Errorf("no handler for %s", event.Type)
	}
	return d.process(ctx, event, []byte(row.Payload), handler, row)
}

func decodeEvent(row *billing.WebhookEvent) (stripe.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal([]byte(row.Payload), &event); err != nil {
		return stripe.Event{}, fmt.Errorf("decode stored event %s: %w", row.StripeEventID, err)
	}
	return event, nil
}

// process runs the handler and records the event in one transaction, then
// hands the produced messages to the notifier.
func (d *Dispatcher) process(ctx context.Context, event stripe.Event, payload []byte, handler reconcile.Handler, prior *billing.WebhookEvent) error {
	log := d.log.With(zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
	now := d.now()

	var row *billing.WebhookEvent
	err := d.store.Transaction(ctx, func(tx store.Store) error {
		msgs, err := handler(ctx, tx, event)
		if err != nil {
			return err
		}
		for i := range msgs {
			msgs[i].EventID = event.ID
		}
		encoded, err := json.Marshal(msgs)
		if err != nil {
			return fmt.Errorf("encode messages: %w", err)
		}

		if prior == nil {
			row = &billing.WebhookEvent{
				StripeEventID: event.ID,
				Type:          string(event.Type),
				Status:        billing.WebhookEventApplied,
				Payload:       string(payload),
				Messages:      string(encoded),
				Attempts:      1,
				ProcessedAt:   &now,
				CreatedAt:     now,
			}
			return tx.CreateWebhookEvent(ctx, row)
		}

		err = tx.TransitionWebhookEvent(ctx, prior.ID, prior.Status, map[string]interface{}{
			"status":       billing.WebhookEventApplied,
			"messages":     string(encoded),
			"delivered":    0,
			"attempts":     prior.Attempts + 1,
			"last_error":   "",
			"processed_at": now,
		})
		if err != nil {
			return err
		}
		row = prior
		row.Status = billing.WebhookEventApplied
		row.Messages = string(encoded)
		row.Delivered = 0
		return nil
	})

	switch {
	case errors.Is(err, reconcile.ErrMissingLocalRecord):
		return d.park(ctx, event, payload, prior, err)
	case err != nil:
		log.Error("webhook handler failed", zap.Error(err))
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), outcomeFailed).Inc()
		if prior != nil {
			d.noteFailure(ctx, prior, err)
		}
		return fmt.Errorf("handle %s %s: %w", event.Type, event.ID, err)
	}

	log.Info("webhook event applied")
	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), outcomeApplied).Inc()
	return d.deliver(ctx, row)
}

// park records an event whose target record does not exist yet. It is kept
// for redrive while inside the deferred window and dropped after.
func (d *Dispatcher) park(ctx context.Context, event stripe.Event, payload []byte, prior *billing.WebhookEvent, cause error) error {
	now := d.now()
	received := now
	if prior != nil {
		received = prior.CreatedAt
	}
	status := billing.WebhookEventSkipped
	if d.window <= 0 || now.Sub(received) >= d.window {
		status = billing.WebhookEventDropped
	}

	d.log.Warn("event references missing local record",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("status", string(status)),
		zap.Error(cause))

	var err error
	if prior == nil {
		row := &billing.WebhookEvent{
			StripeEventID: event.ID,
			Type:          string(event.Type),
			Status:        status,
			Payload:       string(payload),
			Attempts:      1,
			LastError:     cause.Error(),
			CreatedAt:     now,
		}
		if status == billing.WebhookEventDropped {
			row.ProcessedAt = &now
		}
		err = d.store.CreateWebhookEvent(ctx, row)
	} else {
		updates := map[string]interface{}{
			"status":     status,
			"attempts":   prior.Attempts + 1,
			"last_error": cause.Error(),
		}
		if status == billing.WebhookEventDropped {
			updates["processed_at"] = now
		}
		err = d.store.TransitionWebhookEvent(ctx, prior.ID, prior.Status, updates)
	}
	// ErrConflict: a concurrent delivery of the same event already recorded it.
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("record %s event %s: %w", status, event.ID, err)
	}

	outcome := outcomeSkipped
	if status == billing.WebhookEventDropped {
		outcome = outcomeDropped
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), outcome).Inc()
	return nil
}

func (d *Dispatcher) noteFailure(ctx context.Context, prior *billing.WebhookEvent, cause error) {
	err := d.store.UpdateWebhookEvent(ctx, prior.ID, map[string]interface{}{
		"attempts":   prior.Attempts + 1,
		"last_error": cause.Error(),
	})
	if err != nil {
		d.log.Warn("record webhook failure", zap.Uint("webhook_event_id", prior.ID), zap.Error(err))
	}
}

// deliver hands the not yet delivered messages of an applied event to the
// notifier, advancing the delivered counter after each one.
func (d *Dispatcher) deliver(ctx context.Context, row *billing.WebhookEvent) error {
	var msgs []notify.Message
	if row.Messages != "" {
		if err := json.Unmarshal([]byte(row.Messages), &msgs); err != nil {
			return fmt.Errorf("decode messages of event %s: %w", row.StripeEventID, err)
		}
	}

	for i := row.Delivered; i < len(msgs); i++ {
		if _, err := d.notifier.Notify(ctx, msgs[i]); err != nil {
			return fmt.Errorf("deliver message %d of event %s: %w", i, row.StripeEventID, err)
		}
		if err := d.store.UpdateWebhookEvent(ctx, row.ID, map[string]interface{}{"delivered": i + 1}); err != nil {
			return fmt.Errorf("advance delivery of event %s: %w", row.StripeEventID, err)
		}
		row.Delivered = i + 1
	}

	err := d.store.TransitionWebhookEvent(ctx, row.ID, billing.WebhookEventApplied, map[string]interface{}{
		"status": billing.WebhookEventCompleted,
	})
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("complete event %s: %w", row.StripeEventID, err)
	}
	row.Status = billing.WebhookEventCompleted
	return nil
}
