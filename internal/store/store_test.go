package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gig-payments/internal/domain/billing"
	"gig-payments/internal/domain/jobs"
	"gig-payments/internal/domain/notifications"
	"gig-payments/internal/domain/users"
	"gig-payments/internal/store"
	"gig-payments/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentByIntentNotFound(t *testing.T) {
	st := store.New(testutil.NewTestDB(t))

	_, err := st.PaymentByIntent(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = st.UpdatePayment(context.Background(), 99, map[string]interface{}{"status": billing.PaymentFailed})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdvanceJobStatusIsConditional(t *testing.T) {
	db := testutil.NewTestDB(t)
	st := store.New(db)
	ctx := context.Background()

	job := jobs.Job{Title: "Fix fence", Status: jobs.StatusAssigned, PosterID: 1}
	require.NoError(t, db.Create(&job).Error)

	ok, err := st.AdvanceJobStatus(ctx, job.ID, jobs.StatusAssigned, jobs.StatusInProgress)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.AdvanceJobStatus(ctx, job.ID, jobs.StatusAssigned, jobs.StatusInProgress)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := st.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusInProgress, got.Status)
}

func TestEarningUniquePerPaymentAndWorker(t *testing.T) {
	st := store.New(testutil.NewTestDB(t))
	ctx := context.Background()

	earning := func() *billing.Earning {
		return &billing.Earning{
			PaymentID: 1, JobID: 1, WorkerID: 2,
			GrossAmount: decimal.NewFromInt(10), ServiceFee: decimal.RequireFromString("0.25"),
			NetAmount: decimal.RequireFromString("9.75"), Currency: "usd",
			Status: billing.EarningPending, DateEarned: time.Now(),
		}
	}
	require.NoError(t, st.CreateEarning(ctx, earning()))
	err := st.CreateEarning(ctx, earning())
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := st.EarningForPayment(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, got.NetAmount.Equal(decimal.RequireFromString("9.75")))

	tr := "tr_1"
	require.NoError(t, st.UpdateEarning(ctx, got.ID, map[string]interface{}{"stripe_transfer_id": tr}))
	byTransfer, err := st.EarningByTransfer(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, got.ID, byTransfer.ID)
}

func TestUserByStripeAccount(t *testing.T) {
	db := testutil.NewTestDB(t)
	st := store.New(db)
	acct := "acct_1"
	u := users.User{Name: "Wes", Email: "wes@example.com", StripeAccountID: &acct}
	require.NoError(t, db.Create(&u).Error)

	got, err := st.UserByStripeAccount(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = st.UserByStripeAccount(context.Background(), "acct_other")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	st := store.New(testutil.NewTestDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.Transaction(ctx, func(tx store.Store) error {
		require.NoError(t, tx.CreateNotification(ctx, &notifications.Notification{UserID: 1, Type: notifications.TypePayment, Title: "x"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := st.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWebhookEventLedger(t *testing.T) {
	st := store.New(testutil.NewTestDB(t))
	ctx := context.Background()

	ev := &billing.WebhookEvent{StripeEventID: "evt_1", Type: "transfer.paid", Status: billing.WebhookEventSkipped, Payload: "{}"}
	require.NoError(t, st.CreateWebhookEvent(ctx, ev))

	dup := &billing.WebhookEvent{StripeEventID: "evt_1", Type: "transfer.paid", Status: billing.WebhookEventApplied, Payload: "{}"}
	assert.ErrorIs(t, st.CreateWebhookEvent(ctx, dup), store.ErrConflict)

	err := st.TransitionWebhookEvent(ctx, ev.ID, billing.WebhookEventApplied, map[string]interface{}{"status": billing.WebhookEventCompleted})
	assert.ErrorIs(t, err, store.ErrConflict)

	err = st.TransitionWebhookEvent(ctx, ev.ID, billing.WebhookEventSkipped, map[string]interface{}{"status": billing.WebhookEventDropped})
	require.NoError(t, err)

	got, err := st.WebhookEvent(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, billing.WebhookEventDropped, got.Status)

	rows, err := st.WebhookEvents(ctx, store.WebhookEventQuery{Status: billing.WebhookEventSkipped})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = st.WebhookEvents(ctx, store.WebhookEventQuery{Status: billing.WebhookEventDropped})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
