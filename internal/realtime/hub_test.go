package realtime_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubDeliversToEveryConnectionInRoom(t *testing.T) {
	t.Parallel()
	hub := realtime.NewHub(zap.NewNop())
	phone, laptop, other := realtime.NewConn(4), realtime.NewConn(4), realtime.NewConn(4)
	hub.Join("u1", phone)
	hub.Join("u1", laptop)
	hub.Join("u2", other)

	delivered, err := hub.Push(t.Context(), "u1", &models.Notification{ID: 7, Title: "hi"})
	require.NoError(t, err)
	assert.True(t, delivered)

	for _, c := range []*realtime.Conn{phone, laptop} {
		frame := <-c.Messages()
		var env realtime.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		assert.Equal(t, realtime.EventNotification, env.Event)

		var n models.Notification
		require.NoError(t, json.Unmarshal(env.Data, &n))
		assert.Equal(t, uint(7), n.ID)
	}
	assert.Empty(t, other.Messages())

	delivered, err = hub.Push(t.Context(), "nobody", &models.Notification{ID: 8})
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestHubRoomLifecycle(t *testing.T) {
	t.Parallel()
	hub := realtime.NewHub(zap.NewNop())

	var mu sync.Mutex
	var events []string
	hub.OnRoomChange(func(actorID string, open bool) {
		mu.Lock()
		defer mu.Unlock()
		state := "closed"
		if open {
			state = "opened"
		}
		events = append(events, actorID+" "+state)
	})

	a, b := realtime.NewConn(1), realtime.NewConn(1)
	hub.Join("u1", a)
	hub.Join("u1", b)
	hub.Join("u1", b)
	assert.True(t, hub.Online("u1"))

	hub.Leave(a)
	assert.True(t, hub.Online("u1"))

	// re-authenticating as someone else moves the connection
	hub.Join("u2", b)
	assert.False(t, hub.Online("u1"))
	assert.ElementsMatch(t, []string{"u2"}, hub.Rooms())

	hub.Leave(b)
	hub.Leave(b)
	assert.Empty(t, hub.Rooms())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"u1 opened", "u1 closed", "u2 opened", "u2 closed"}, events)
}

func TestHubDropsFramesForFullConnections(t *testing.T) {
	t.Parallel()
	hub := realtime.NewHub(zap.NewNop())
	slow := realtime.NewConn(1)
	hub.Join("u1", slow)

	assert.Equal(t, 1, hub.Deliver("u1", []byte("one")))
	assert.Equal(t, 0, hub.Deliver("u1", []byte("two")))
	assert.Equal(t, []byte("one"), <-slow.Messages())
}
