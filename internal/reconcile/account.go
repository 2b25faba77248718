package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripeinfra "gig-payments/internal/infra/stripe"
	"gig-payments/internal/notify"
	"gig-payments/internal/realtime"
	"gig-payments/internal/store"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// Account notice statuses carried in the live event.
const (
	AccountPayoutsEnabled  = "payouts_enabled"
	AccountPayoutsDisabled = "payouts_disabled"
	AccountActionRequired  = "action_required"
)

func (r *Reconciler) accountUpdated(ctx context.Context, tx store.Store, ev stripe.Event) ([]notify.Message, error) {
	acct, err := decode[stripe.Account](ev)
	if err != nil {
		return nil, err
	}
	user, err := tx.UserByStripeAccount(ctx, acct.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, missing("user for account", acct.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("load user for account %s: %w", acct.ID, err)
	}
	log := r.log.With(zap.String("event_id", ev.ID), zap.Uint("user_id", user.ID))

	now := r.now()
	notice := func(status, title, body string) notify.Message {
		return notify.Message{
			UserID:   user.ID,
			Title:    title,
			Body:     body,
			LinkType: "account",
			Event: realtime.Event{
				Type:      realtime.TypeAccount,
				Status:    status,
				Message:   body,
				Timestamp: realtime.Millis(now),
			},
		}
	}

	var msgs []notify.Message
	capable := stripeinfra.TransfersCapable(acct)
	switch {
	case capable && !user.PayoutsEnabled:
		if err := tx.UpdateUser(ctx, user.ID, map[string]interface{}{"payouts_enabled": true}); err != nil {
			return nil, fmt.Errorf("enable payouts for user %d: %w", user.ID, err)
		}
		log.Info("payouts enabled")
		msgs = append(msgs, notice(AccountPayoutsEnabled, "Payouts enabled",
			"Your payout account is verified. You can now receive payouts."))
	case !capable && user.PayoutsEnabled:
		if err := tx.UpdateUser(ctx, user.ID, map[string]interface{}{"payouts_enabled": false}); err != nil {
			return nil, fmt.Errorf("disable payouts for user %d: %w", user.ID, err)
		}
		log.Warn("payouts disabled")
		msgs = append(msgs, notice(AccountPayoutsDisabled, "Payouts paused",
			"Your payout account can no longer receive transfers. Payouts are paused until it is reviewed."))
	}

	if reqs := stripeinfra.OutstandingRequirements(acct); len(reqs) > 0 {
		log.Info("account has outstanding requirements", zap.Strings("requirements", reqs))
		msgs = append(msgs, notice(AccountActionRequired, "Action required",
			fmt.Sprintf("Your payout account needs more information: %s.", humanize(reqs))))
	}
	return msgs, nil
}

// humanize turns requirement keys like "individual.id_number" into
// "individual id number".
func humanize(reqs []string) string {
	out := make([]string, len(reqs))
	r := strings.NewReplacer(".", " ", "_", " ")
	for i, k := range reqs {
		out[i] = r.Replace(k)
	}
	return strings.Join(out, ", ")
}
