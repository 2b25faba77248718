package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gig-payments/internal/domain/billing"
	"gig-payments/internal/domain/jobs"
	"gig-payments/internal/notify"
	"gig-payments/internal/realtime"
	"gig-payments/internal/store"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

func (r *Reconciler) paymentByIntent(ctx context.Context, tx store.Store, intentID string) (*billing.Payment, error) {
	payment, err := tx.PaymentByIntent(ctx, intentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, missing("payment", intentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", intentID, err)
	}
	return payment, nil
}

func (r *Reconciler) chargeSucceeded(ctx context.Context, tx store.Store, ev stripe.Event) ([]notify.Message, error) {
	pi, err := decode[stripe.PaymentIntent](ev)
	if err != nil {
		return nil, err
	}
	payment, err := r.paymentByIntent(ctx, tx, pi.ID)
	if err != nil {
		return nil, err
	}
	log := r.log.With(zap.String("event_id", ev.ID), zap.Uint("payment_id", payment.ID))

	switch payment.Status {
	case billing.PaymentCompleted:
		log.Info("payment already completed")
		return nil, nil
	case billing.PaymentRefunded:
		log.Warn("success reported for refunded payment, ignoring")
		return nil, nil
	}

	if err := tx.UpdatePayment(ctx, payment.ID, map[string]interface{}{"status": billing.PaymentCompleted}); err != nil {
		return nil, fmt.Errorf("complete payment %d: %w", payment.ID, err)
	}

	job, err := r.jobFor(ctx, tx, payment.JobID, log)
	if err != nil {
		return nil, err
	}

	now := r.now()
	var earning *billing.Earning
	if job != nil {
		advanced, err := tx.AdvanceJobStatus(ctx, job.ID, jobs.StatusAssigned, jobs.StatusInProgress)
		if err != nil {
			return nil, fmt.Errorf("start job %d: %w", job.ID, err)
		}
		if advanced {
			log.Info("job started", zap.Uint("job_id", job.ID))
		}
		if job.WorkerID != nil {
			earning, err = r.ensureEarning(ctx, tx, payment, job, *job.WorkerID, now)
			if err != nil {
				return nil, err
			}
		}
	}

	linkType, linkID := jobLink(job, "payment", payment.ID)
	msgs := []notify.Message{{
		UserID:   posterOf(payment, job),
		Title:    "Payment successful",
		Body:     fmt.Sprintf("Your payment of %s%s was successful.", money(payment.Amount, payment.Currency), forJob(job)),
		LinkType: linkType,
		LinkID:   linkID,
		Event:    event(realtime.TypePayment, string(billing.PaymentCompleted), job, payment.Amount, now),
	}}
	if earning != nil {
		msgs = append(msgs, notify.Message{
			UserID:   earning.WorkerID,
			Title:    "Job funded",
			Body:     fmt.Sprintf("Payment%s is secured. You will earn %s once paid out.", forJob(job), money(earning.NetAmount, earning.Currency)),
			LinkType: linkType,
			LinkID:   linkID,
			Event:    event(realtime.TypePayment, string(billing.PaymentCompleted), job, earning.NetAmount, now),
		})
	}
	return msgs, nil
}

// ensureEarning creates the worker's pending earning unless one already exists
// for this payment.
func (r *Reconciler) ensureEarning(ctx context.Context, tx store.Store, payment *billing.Payment, job *jobs.Job, workerID uint, now time.Time) (*billing.Earning, error) {
	existing, err := tx.EarningForPayment(ctx, payment.ID, workerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load earning for payment %d: %w", payment.ID, err)
	}

	fee, net := r.Split(payment.Amount)
	earning := &billing.Earning{
		PaymentID:   payment.ID,
		JobID:       job.ID,
		WorkerID:    workerID,
		GrossAmount: payment.Amount,
		ServiceFee:  fee,
		NetAmount:   net,
		Currency:    payment.Currency,
		Status:      billing.EarningPending,
		DateEarned:  now,
	}
	if err := tx.CreateEarning(ctx, earning); err != nil {
		return nil, fmt.Errorf("create earning for payment %d: %w", payment.ID, err)
	}
	return earning, nil
}

func (r *Reconciler) chargeFailed(ctx context.Context, tx store.Store, ev stripe.Event) ([]notify.Message, error) {
	pi, err := decode[stripe.PaymentIntent](ev)
	if err != nil {
		return nil, err
	}
	payment, err := r.paymentByIntent(ctx, tx, pi.ID)
	if err != nil {
		return nil, err
	}
	log := r.log.With(zap.String("event_id", ev.ID), zap.Uint("payment_id", payment.ID))

	switch payment.Status {
	case billing.PaymentFailed:
		log.Info("payment already failed")
		return nil, nil
	case billing.PaymentCompleted, billing.PaymentRefunded:
		log.Warn("failure reported for settled payment, ignoring", zap.String("status", string(payment.Status)))
		return nil, nil
	}

	if err := tx.UpdatePayment(ctx, payment.ID, map[string]interface{}{"status": billing.PaymentFailed}); err != nil {
		return nil, fmt.Errorf("fail payment %d: %w", payment.ID, err)
	}

	job, err := r.jobFor(ctx, tx, payment.JobID, log)
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Your payment of %s%s failed.", money(payment.Amount, payment.Currency), forJob(job))
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		body += " " + pi.LastPaymentError.Msg
	}
	body += " Please update your payment method and try again."

	linkType, linkID := jobLink(job, "payment", payment.ID)
	return []notify.Message{{
		UserID:   posterOf(payment, job),
		Title:    "Payment failed",
		Body:     body,
		LinkType: linkType,
		LinkID:   linkID,
		Event:    event(realtime.TypePayment, string(billing.PaymentFailed), job, payment.Amount, r.now()),
	}}, nil
}

// chargeRefunded handles full refunds only. Pending earnings of the payment
// are cancelled; earnings already in transfer are left for the transfer events.
func (r *Reconciler) chargeRefunded(ctx context.Context, tx store.Store, ev stripe.Event) ([]notify.Message, error) {
	ch, err := decode[stripe.Charge](ev)
	if err != nil {
		return nil, err
	}
	if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
		return nil, missing("payment for charge", ch.ID)
	}
	payment, err := r.paymentByIntent(ctx, tx, ch.PaymentIntent.ID)
	if err != nil {
		return nil, err
	}
	log := r.log.With(zap.String("event_id", ev.ID), zap.Uint("payment_id", payment.ID))

	if !ch.Refunded {
		log.Info("partial refund, payment left unchanged", zap.Int64("amount_refunded", ch.AmountRefunded))
		return nil, nil
	}
	if payment.Status == billing.PaymentRefunded {
		log.Info("payment already refunded")
		return nil, nil
	}

	if err := tx.UpdatePayment(ctx, payment.ID, map[string]interface{}{"status": billing.PaymentRefunded}); err != nil {
		return nil, fmt.Errorf("refund payment %d: %w", payment.ID, err)
	}

	job, err := r.jobFor(ctx, tx, payment.JobID, log)
	if err != nil {
		return nil, err
	}
	now := r.now()
	linkType, linkID := jobLink(job, "payment", payment.ID)
	msgs := []notify.Message{{
		UserID:   posterOf(payment, job),
		Title:    "Payment refunded",
		Body:     fmt.Sprintf("Your payment of %s%s was refunded.", money(payment.Amount, payment.Currency), forJob(job)),
		LinkType: linkType,
		LinkID:   linkID,
		Event:    event(realtime.TypePayment, string(billing.PaymentRefunded), job, payment.Amount, now),
	}}

	earnings, err := tx.EarningsForPayment(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("load earnings for payment %d: %w", payment.ID, err)
	}
	for _, e := range earnings {
		if e.Status != billing.EarningPending {
			log.Warn("refunded payment has earning in transfer", zap.Uint("earning_id", e.ID), zap.String("status", string(e.Status)))
			continue
		}
		if err := tx.UpdateEarning(ctx, e.ID, map[string]interface{}{"status": billing.EarningFailed}); err != nil {
			return nil, fmt.Errorf("cancel earning %d: %w", e.ID, err)
		}
		earningID := e.ID
		msgs = append(msgs, notify.Message{
			UserID:   e.WorkerID,
			Title:    "Payout cancelled",
			Body:     fmt.Sprintf("The payment%s was refunded, so the pending payout of %s was cancelled.", forJob(job), money(e.NetAmount, e.Currency)),
			LinkType: "earning",
			LinkID:   &earningID,
			Event:    event(realtime.TypePayout, string(billing.EarningFailed), job, e.NetAmount, now),
		})
	}
	return msgs, nil
}
