package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gig-payments/internal/domain/billing"
	"gig-payments/internal/domain/jobs"
	"gig-payments/internal/notify"
	"gig-payments/internal/realtime"
	"gig-payments/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// Provider event types handled here. Stripe no longer lists transfer.paid and
// transfer.failed but older API versions still deliver them.
const (
	EventChargeSucceeded  = stripe.EventTypePaymentIntentSucceeded
	EventChargeFailed     = stripe.EventTypePaymentIntentPaymentFailed
	EventChargeRefunded   = stripe.EventTypeChargeRefunded
	EventTransferCreated  = stripe.EventTypeTransferCreated
	EventTransferPaid     = stripe.EventType("transfer.paid")
	EventTransferFailed   = stripe.EventType("transfer.failed")
	EventTransferReversed = stripe.EventTypeTransferReversed
	EventAccountUpdated   = stripe.EventTypeAccountUpdated
)

// ErrMissingLocalRecord means the event refers to a payment, earning or user
// this service has no row for. The event is acknowledged, not retried.
var ErrMissingLocalRecord = errors.New("missing local record")

// Handler applies one provider event inside tx and returns the notifications
// it produced. Handlers must tolerate being run again for the same change.
type Handler func(ctx context.Context, tx store.Store, event stripe.Event) ([]notify.Message, error)

type Reconciler struct {
	feeRate decimal.Decimal
	now     func() time.Time
	log     *zap.Logger
}

func New(feeRate decimal.Decimal, log *zap.Logger) *Reconciler {
	return &Reconciler{
		feeRate: feeRate,
		now:     time.Now,
		log:     log.With(zap.String("component", "reconciler")),
	}
}

// Handlers is the registration table used by the webhook dispatcher.
func (r *Reconciler) Handlers() map[stripe.EventType]Handler {
	return map[stripe.EventType]Handler{
		EventChargeSucceeded:  r.chargeSucceeded,
		EventChargeFailed:     r.chargeFailed,
		EventChargeRefunded:   r.chargeRefunded,
		EventTransferCreated:  r.transferCreated,
		EventTransferPaid:     r.transferPaid,
		EventTransferFailed:   r.transferFailed,
		EventTransferReversed: r.transferFailed,
		EventAccountUpdated:   r.accountUpdated,
	}
}

// Split returns the service fee and the worker's net share of gross.
func (r *Reconciler) Split(gross decimal.Decimal) (fee, net decimal.Decimal) {
	fee = gross.Mul(r.feeRate).Round(2)
	return fee, gross.Sub(fee)
}

func missing(kind, ref string) error {
	return fmt.Errorf("%w: %s %s", ErrMissingLocalRecord, kind, ref)
}

func decode[T any](event stripe.Event) (*T, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("event %s carries no data object", event.ID)
	}
	var obj T
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	return &obj, nil
}

// jobFor loads the job a payment or earning points at. A dangling reference is
// logged and treated as "no job".
func (r *Reconciler) jobFor(ctx context.Context, tx store.Store, id *uint, log *zap.Logger) (*jobs.Job, error) {
	if id == nil {
		return nil, nil
	}
	job, err := tx.Job(ctx, *id)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("referenced job not found", zap.Uint("job_id", *id))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", *id, err)
	}
	return job, nil
}

func event(kind, status string, job *jobs.Job, amount decimal.Decimal, now time.Time) realtime.Event {
	ev := realtime.Event{
		Type:      kind,
		Status:    status,
		Amount:    amount.StringFixed(2),
		Timestamp: realtime.Millis(now),
	}
	if job != nil {
		id := job.ID
		ev.JobID = &id
		ev.JobTitle = job.Title
	}
	return ev
}

func jobLink(job *jobs.Job, fallbackType string, fallbackID uint) (string, *uint) {
	if job != nil {
		id := job.ID
		return "job", &id
	}
	return fallbackType, &fallbackID
}

// posterOf targets the job's poster; the payer only stands in when the payment
// has no job.
func posterOf(payment *billing.Payment, job *jobs.Job) uint {
	if job != nil && job.PosterID != 0 {
		return job.PosterID
	}
	return payment.PayerID
}

func forJob(job *jobs.Job) string {
	if job == nil {
		return ""
	}
	return fmt.Sprintf(" for \"%s\"", job.Title)
}

func money(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + strings.ToUpper(currency)
}
