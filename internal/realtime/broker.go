package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broker relays pushes to other instances of the service so a user connected
// to a different node still gets the live path.
type Broker interface {
	Publish(ctx context.Context, userID uint, ev Event) error
}

const DefaultChannel = "realtime:push"

type envelope struct {
	Origin string `json:"origin"`
	UserID uint   `json:"user_id"`
	Event  Event  `json:"event"`
}

// RedisBroker fans pushes out over Redis pub/sub. Messages published by this
// instance are ignored on receipt; local delivery already happened.
type RedisBroker struct {
	rdb      *redis.Client
	channel  string
	origin   string
	registry Registry
	log      *zap.Logger
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(rdb *redis.Client, reg Registry, log *zap.Logger) *RedisBroker {
	return &RedisBroker{
		rdb:      rdb,
		channel:  DefaultChannel,
		origin:   uuid.NewString(),
		registry: reg,
		log:      log.With(zap.String("component", "broker")),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, userID uint, ev Event) error {
	data, err := json.Marshal(envelope{Origin: b.origin, UserID: userID, Event: ev})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

// Run consumes the channel until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.log.Info("subscribed", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(msg.Payload)
		}
	}
}

// handle delivers a foreign push locally and returns the number of connections reached.
func (b *RedisBroker) handle(payload string) int {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("malformed broker message", zap.Error(err))
		return 0
	}
	if env.Origin == b.origin || env.UserID == 0 {
		return 0
	}
	return Push(b.registry, env.UserID, env.Event, b.log)
}
