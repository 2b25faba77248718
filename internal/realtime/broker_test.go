package realtime

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBrokerHandleSkipsOwnMessages(t *testing.T) {
	reg := NewMemoryRegistry()
	conn := &fakeConn{}
	reg.Register(NewClient("a", 5, conn, time.Now()))
	b := &RedisBroker{origin: "node-a", registry: reg, log: zap.NewNop()}

	own, _ := json.Marshal(envelope{Origin: "node-a", UserID: 5, Event: Event{Type: TypePayment}})
	assert.Equal(t, 0, b.handle(string(own)))

	foreign, _ := json.Marshal(envelope{Origin: "node-b", UserID: 5, Event: Event{Type: TypePayment, Status: "failed"}})
	assert.Equal(t, 1, b.handle(string(foreign)))

	assert.Equal(t, 0, b.handle("{broken"))

	require.Len(t, conn.events(), 1)
	assert.Equal(t, "failed", conn.events()[0].Status)
}

func TestRedisBrokerRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	remoteReg := NewMemoryRegistry()
	conn := &fakeConn{}
	remoteReg.Register(NewClient("a", 11, conn, time.Now()))

	sender := NewRedisBroker(rdb, NewMemoryRegistry(), zap.NewNop())
	receiver := NewRedisBroker(rdb, remoteReg, zap.NewNop())
	sender.channel = "realtime:test:" + t.Name()
	receiver.channel = sender.channel

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = receiver.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = sender.Publish(ctx, 11, Event{Type: TypeAccount, Status: "payouts_enabled"})
		return len(conn.events()) > 0
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, TypeAccount, conn.events()[0].Type)
}
