package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRoomEventsOutOfOrderFollowHubState(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(zap.NewNop())
	relay := NewRedisRelay(client, hub, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return relay.current() != nil }, 2*time.Second, 10*time.Millisecond)

	subscribed := func() bool { return len(mr.PubSubChannels("notify:u1")) == 1 }

	conn := NewConn(4)
	hub.Join("u1", conn)
	require.Eventually(t, subscribed, 2*time.Second, 10*time.Millisecond)
	hub.Leave(conn)
	require.Eventually(t, func() bool { return !subscribed() }, 2*time.Second, 10*time.Millisecond)

	// the open event of the earlier Join delivered after the close
	relay.roomChanged("u1", true)
	assert.Never(t, subscribed, 200*time.Millisecond, 20*time.Millisecond)

	other := NewConn(4)
	hub.Join("u1", other)
	require.Eventually(t, subscribed, 2*time.Second, 10*time.Millisecond)

	// a stale close while the room is open keeps the subscription
	relay.roomChanged("u1", false)
	assert.Never(t, func() bool { return !subscribed() }, 200*time.Millisecond, 20*time.Millisecond)
}
