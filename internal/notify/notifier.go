package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"time"

	"gig-payments/internal/domain/notifications"
	"gig-payments/internal/metrics"
	"gig-payments/internal/realtime"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Message is one user-addressed notification: the live Event plus the text
// stored for the durable copy.
type Message struct {
	UserID   uint           `json:"user_id"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	LinkType string         `json:"link_type,omitempty"`
	LinkID   *uint          `json:"link_id,omitempty"`
	EventID  string         `json:"event_id,omitempty"`
	Event    realtime.Event `json:"event"`
}

type Persister interface {
	CreateNotification(ctx context.Context, n *notifications.Notification) error
}

// Notifier delivers a Message on both paths: a best-effort push to the user's
// live connections, then an unconditional Notification row.
type Notifier struct {
	registry realtime.Registry
	broker   realtime.Broker
	store    Persister
	policy   *bluemonday.Policy
	now      func() time.Time
	log      *zap.Logger
}

// New builds a Notifier. broker may be nil for single-instance deployments.
func New(reg realtime.Registry, broker realtime.Broker, store Persister, log *zap.Logger) *Notifier {
	return &Notifier{
		registry: reg,
		broker:   broker,
		store:    store,
		policy:   bluemonday.StrictPolicy(),
		now:      time.Now,
		log:      log.With(zap.String("component", "notifier")),
	}
}

// Notify reports whether at least one live connection received the push. The
// flag is informational; the returned error only concerns the durable write.
func (n *Notifier) Notify(ctx context.Context, msg Message) (bool, error) {
	ev := msg.Event
	ev.JobTitle = n.plain(ev.JobTitle)
	if ev.Timestamp == 0 {
		ev.Timestamp = realtime.Millis(n.now())
	}

	delivered := realtime.Push(n.registry, msg.UserID, ev, n.log) > 0
	if n.broker != nil {
		if err := n.broker.Publish(ctx, msg.UserID, ev); err != nil {
			n.log.Warn("broker publish failed", zap.Uint("user_id", msg.UserID), zap.Error(err))
		}
	}

	row := &notifications.Notification{
		UserID:        msg.UserID,
		Type:          notifications.Type(ev.Type),
		Title:         n.plain(msg.Title),
		Body:          n.plain(msg.Body),
		LinkType:      msg.LinkType,
		LinkID:        msg.LinkID,
		SourceEventID: msg.EventID,
	}
	metrics.NotificationsTotal.WithLabelValues(ev.Type, strconv.FormatBool(delivered)).Inc()

	if err := n.store.CreateNotification(ctx, row); err != nil {
		n.log.Error("persist notification failed",
			zap.Uint("user_id", msg.UserID),
			zap.String("type", ev.Type),
			zap.Error(err))
		return delivered, fmt.Errorf("persist notification: %w", err)
	}
	return delivered, nil
}

// plain strips markup and returns readable text; StrictPolicy escapes entities
// on output, which stored text must not carry.
func (n *Notifier) plain(s string) string {
	return html.UnescapeString(n.policy.Sanitize(s))
}
