package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gig-payments/internal/domain/billing"
	"gig-payments/internal/notify"
	"gig-payments/internal/realtime"
	"gig-payments/internal/store"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// earningForTransfer resolves the earning a transfer pays out. The payout job
// stamps earning_id into the transfer metadata; the stored transfer id is the
// fallback for transfers created elsewhere.
func (r *Reconciler) earningForTransfer(ctx context.Context, tx store.Store, tr *stripe.Transfer) (*billing.Earning, error) {
	if raw := tr.Metadata["earning_id"]; raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err == nil {
			e, err := tx.Earning(ctx, uint(id))
			if err == nil {
				return e, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("load earning %d: %w", id, err)
			}
		}
	}
	e, err := tx.EarningByTransfer(ctx, tr.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, missing("earning for transfer", tr.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("load earning for transfer %s: %w", tr.ID, err)
	}
	return e, nil
}

type transferChange struct {
	status  billing.EarningStatus
	skip    func(e *billing.Earning) bool
	updates func(tr *stripe.Transfer) map[string]interface{}
	title   string
	body    string
}

func (r *Reconciler) applyTransfer(ctx context.Context, tx store.Store, ev stripe.Event, change transferChange) ([]notify.Message, error) {
	tr, err := decode[stripe.Transfer](ev)
	if err != nil {
		return nil, err
	}
	earning, err := r.earningForTransfer(ctx, tx, tr)
	if err != nil {
		return nil, err
	}
	log := r.log.With(zap.String("event_id", ev.ID), zap.Uint("earning_id", earning.ID), zap.String("transfer_id", tr.ID))

	if change.skip(earning) {
		log.Info("earning already past this transfer state", zap.String("status", string(earning.Status)))
		return nil, nil
	}

	updates := change.updates(tr)
	updates["status"] = change.status
	if earning.StripeTransferID == nil || *earning.StripeTransferID != tr.ID {
		updates["stripe_transfer_id"] = tr.ID
	}
	if err := tx.UpdateEarning(ctx, earning.ID, updates); err != nil {
		return nil, fmt.Errorf("update earning %d: %w", earning.ID, err)
	}
	log.Info("earning updated", zap.String("from", string(earning.Status)), zap.String("to", string(change.status)))

	job, err := r.jobFor(ctx, tx, &earning.JobID, log)
	if err != nil {
		return nil, err
	}
	earningID := earning.ID
	return []notify.Message{{
		UserID:   earning.WorkerID,
		Title:    change.title,
		Body:     fmt.Sprintf(change.body, money(earning.NetAmount, earning.Currency), forJob(job)),
		LinkType: "earning",
		LinkID:   &earningID,
		Event:    event(realtime.TypePayout, string(change.status), job, earning.NetAmount, r.now()),
	}}, nil
}

func noUpdates(*stripe.Transfer) map[string]interface{} { return map[string]interface{}{} }

func (r *Reconciler) transferCreated(ctx context.Context, tx store.Store, ev stripe.Event) ([]notify.Message, error) {
	return r.applyTransfer(ctx, tx, ev, transferChange{
		status: billing.EarningProcessing,
		skip: func(e *billing.Earning) bool {
			return e.Status == billing.EarningProcessing || e.Status == billing.EarningPaid
		},
		updates: noUpdates,
		title:   "Payout started",
		body:    "A payout of %s%s is on its way.",
	})
}

func (r *Reconciler) transferPaid(ctx context.Context, tx store.Store, ev stripe.Event) ([]notify.Message, error) {
	return r.applyTransfer(ctx, tx, ev, transferChange{
		status: billing.EarningPaid,
		skip:   func(e *billing.Earning) bool { return e.Status == billing.EarningPaid },
		updates: func(*stripe.Transfer) map[string]interface{} {
			return map[string]interface{}{"date_paid": r.now()}
		},
		title: "Payout sent",
		body:  "Your payout of %s%s has been sent.",
	})
}

// transferFailed also handles transfer.reversed, which pulls back funds even
// after the earning was marked paid.
func (r *Reconciler) transferFailed(ctx context.Context, tx store.Store, ev stripe.Event) ([]notify.Message, error) {
	return r.applyTransfer(ctx, tx, ev, transferChange{
		status:  billing.EarningFailed,
		skip:    func(e *billing.Earning) bool { return e.Status == billing.EarningFailed },
		updates: noUpdates,
		title:   "Payout failed",
		body:    "Your payout of %s%s failed. Please check your payout details.",
	})
}
