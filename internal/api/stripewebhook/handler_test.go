package stripewebhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gig-payments/internal/domain/billing"
	"gig-payments/internal/domain/jobs"
	"gig-payments/internal/domain/users"
	stripeinfra "gig-payments/internal/infra/stripe"
	"gig-payments/internal/notify"
	"gig-payments/internal/reconcile"
	"gig-payments/internal/store"
	"gig-payments/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

type recordingNotifier struct {
	mu     sync.Mutex
	calls  int
	failOn int
	msgs   []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.calls == n.failOn {
		return false, errors.New("notifications table unavailable")
	}
	n.msgs = append(n.msgs, msg)
	return false, nil
}

func (n *recordingNotifier) delivered() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.msgs...)
}

type env struct {
	t          *testing.T
	db         *gorm.DB
	store      *store.GormStore
	notifier   *recordingNotifier
	dispatcher *Dispatcher
	router     *gin.Engine
	clock      time.Time
	payerID    uint
	jobID      uint
}

func newEnv(t *testing.T, window time.Duration) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	e := &env{
		t:        t,
		db:       db,
		store:    store.New(db),
		notifier: &recordingNotifier{},
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	rec := reconcile.New(decimal.RequireFromString("0.025"), zap.NewNop())
	e.dispatcher = NewDispatcher(e.store, e.notifier, rec.Handlers(), Options{DeferredWindow: window})
	e.dispatcher.now = func() time.Time { return e.clock }

	h := NewHandler(stripeinfra.NewVerifier(testSecret, 0), e.dispatcher, zap.NewNop())
	e.router = gin.New()
	e.router.POST("/webhook", h.Webhook)

	poster := users.User{Name: "Pat", Email: "pat@example.com"}
	worker := users.User{Name: "Wes", Email: "wes@example.com"}
	require.NoError(t, db.Create(&poster).Error)
	require.NoError(t, db.Create(&worker).Error)
	job := jobs.Job{Title: "Paint the shed", Status: jobs.StatusAssigned, PosterID: poster.ID, WorkerID: &worker.ID}
	require.NoError(t, db.Create(&job).Error)
	e.payerID, e.jobID = poster.ID, job.ID
	return e
}

func (e *env) seedPayment(intentID string) {
	p := billing.Payment{
		PayerID:               e.payerID,
		JobID:                 &e.jobID,
		Amount:                decimal.RequireFromString("100.00"),
		Currency:              "usd",
		Status:                billing.PaymentPending,
		StripePaymentIntentID: intentID,
	}
	require.NoError(e.t, e.db.Create(&p).Error)
}

func eventBody(t *testing.T, id, typ string, object interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":     id,
		"object": "event",
		"type":   typ,
		"data":   map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return body
}

func sign(body []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: testSecret}).Header
}

func (e *env) post(body []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) postSigned(body []byte) *httptest.ResponseRecorder {
	return e.post(body, sign(body))
}

func (e *env) row(eventID string) billing.WebhookEvent {
	var row billing.WebhookEvent
	require.NoError(e.t, e.db.Where("stripe_event_id = ?", eventID).First(&row).Error)
	return row
}

func (e *env) countEarnings() int64 {
	var n int64
	require.NoError(e.t, e.db.Model(&billing.Earning{}).Count(&n).Error)
	return n
}

func succeeded(t *testing.T, eventID, intentID string) []byte {
	return eventBody(t, eventID, "payment_intent.succeeded", map[string]interface{}{"id": intentID, "object": "payment_intent"})
}

func TestWebhookAppliesEvent(t *testing.T) {
	e := newEnv(t, 0)
	e.seedPayment("pi_1")

	w := e.postSigned(succeeded(t, "evt_1", "pi_1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	msgs := e.notifier.delivered()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, "evt_1", m.EventID)
	}

	row := e.row("evt_1")
	assert.Equal(t, billing.WebhookEventCompleted, row.Status)
	assert.Equal(t, 2, row.Delivered)
	assert.Equal(t, "payment_intent.succeeded", row.Type)
	assert.EqualValues(t, 1, e.countEarnings())
}

func TestWebhookDuplicateDeliveryIsNoop(t *testing.T) {
	e := newEnv(t, 0)
	e.seedPayment("pi_1")
	body := succeeded(t, "evt_1", "pi_1")

	require.Equal(t, http.StatusOK, e.postSigned(body).Code)
	require.Equal(t, http.StatusOK, e.postSigned(body).Code)

	assert.Len(t, e.notifier.delivered(), 2)
	assert.EqualValues(t, 1, e.countEarnings())
}

func TestWebhookUnknownTypeAcknowledged(t *testing.T) {
	e := newEnv(t, 0)

	w := e.postSigned(eventBody(t, "evt_x", "customer.created", map[string]interface{}{"id": "cus_1"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, e.notifier.delivered())
	var n int64
	require.NoError(t, e.db.Model(&billing.WebhookEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	e := newEnv(t, 0)
	e.seedPayment("pi_1")
	body := succeeded(t, "evt_1", "pi_1")

	cases := map[string]string{
		"missing header": "",
		"garbage header": "t=1,v1=deadbeef",
		"wrong secret": webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload: body, Secret: "whsec_other",
		}).Header,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			w := e.post(body, header)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "message")
		})
	}
	assert.Empty(t, e.notifier.delivered())
	assert.Zero(t, e.countEarnings())
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	e := newEnv(t, 0)
	body := []byte(`{"id":"evt_big","pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`)

	w := e.postSigned(body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandlerErrorReturns500(t *testing.T) {
	e := newEnv(t, 0)
	e.seedPayment("pi_1")

	body := eventBody(t, "evt_bad", "payment_intent.succeeded", map[string]interface{}{"id": 42})
	w := e.postSigned(body)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "message")
	var n int64
	require.NoError(t, e.db.Model(&billing.WebhookEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestWebhookMissingRecordDropped(t *testing.T) {
	e := newEnv(t, 0)

	w := e.postSigned(succeeded(t, "evt_1", "pi_missing"))

	require.Equal(t, http.StatusOK, w.Code)
	row := e.row("evt_1")
	assert.Equal(t, billing.WebhookEventDropped, row.Status)
	assert.Contains(t, row.LastError, "pi_missing")
	assert.Empty(t, e.notifier.delivered())

	e.seedPayment("pi_missing")
	require.Equal(t, http.StatusOK, e.postSigned(succeeded(t, "evt_1", "pi_missing")).Code)
	assert.Empty(t, e.notifier.delivered())
}

func TestWebhookResumesInterruptedDelivery(t *testing.T) {
	e := newEnv(t, 0)
	e.seedPayment("pi_1")
	e.notifier.failOn = 2
	body := succeeded(t, "evt_1", "pi_1")

	require.Equal(t, http.StatusInternalServerError, e.postSigned(body).Code)
	row := e.row("evt_1")
	assert.Equal(t, billing.WebhookEventApplied, row.Status)
	assert.Equal(t, 1, row.Delivered)

	require.Equal(t, http.StatusOK, e.postSigned(body).Code)
	msgs := e.notifier.delivered()
	require.Len(t, msgs, 2)
	assert.NotEqual(t, msgs[0].UserID, msgs[1].UserID)
	assert.Equal(t, billing.WebhookEventCompleted, e.row("evt_1").Status)
	assert.EqualValues(t, 1, e.countEarnings())
}

func TestRedriveSkippedEventInsideWindow(t *testing.T) {
	e := newEnv(t, time.Hour)
	r := NewRedriver(e.store, e.dispatcher, time.Minute, zap.NewNop())

	require.Equal(t, http.StatusOK, e.postSigned(succeeded(t, "evt_1", "pi_late")).Code)
	assert.Equal(t, billing.WebhookEventSkipped, e.row("evt_1").Status)

	e.clock = e.clock.Add(time.Minute)
	n, err := r.Sweep(context.Background(), e.clock)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	row := e.row("evt_1")
	assert.Equal(t, billing.WebhookEventSkipped, row.Status)
	assert.Equal(t, 2, row.Attempts)

	e.seedPayment("pi_late")
	e.clock = e.clock.Add(time.Minute)
	n, err = r.Sweep(context.Background(), e.clock)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, billing.WebhookEventCompleted, e.row("evt_1").Status)
	assert.Len(t, e.notifier.delivered(), 2)
	assert.EqualValues(t, 1, e.countEarnings())
}

func TestRedriveDropsAfterWindow(t *testing.T) {
	e := newEnv(t, time.Hour)
	r := NewRedriver(e.store, e.dispatcher, time.Minute, zap.NewNop())

	require.Equal(t, http.StatusOK, e.postSigned(succeeded(t, "evt_1", "pi_never")).Code)

	e.clock = e.clock.Add(2 * time.Hour)
	n, err := r.Sweep(context.Background(), e.clock)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, billing.WebhookEventDropped, e.row("evt_1").Status)
}

func TestRedriveResumesStalledDelivery(t *testing.T) {
	e := newEnv(t, 0)
	e.seedPayment("pi_1")
	e.notifier.failOn = 1
	r := NewRedriver(e.store, e.dispatcher, time.Minute, zap.NewNop())

	require.Equal(t, http.StatusInternalServerError, e.postSigned(succeeded(t, "evt_1", "pi_1")).Code)
	assert.Equal(t, billing.WebhookEventApplied, e.row("evt_1").Status)

	n, err := r.Sweep(context.Background(), time.Now().AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, billing.WebhookEventCompleted, e.row("evt_1").Status)
	assert.Len(t, e.notifier.delivered(), 2)
}

func TestDispatcherRedriveByID(t *testing.T) {
	e := newEnv(t, 0)
	require.Equal(t, http.StatusOK, e.postSigned(succeeded(t, "evt_1", "pi_1")).Code)
	row := e.row("evt_1")
	require.Equal(t, billing.WebhookEventDropped, row.Status)

	e.seedPayment("pi_1")
	require.NoError(t, e.dispatcher.Redrive(context.Background(), row.ID))
	assert.Equal(t, billing.WebhookEventCompleted, e.row("evt_1").Status)
	assert.Len(t, e.notifier.delivered(), 2)

	err := e.dispatcher.Redrive(context.Background(), row.ID)
	assert.ErrorIs(t, err, ErrNotRedrivable)

	err = e.dispatcher.Redrive(context.Background(), 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
