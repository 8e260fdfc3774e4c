package realtime

import (
	"context"
	"strings"
	"sync"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "notify:"

func channelFor(actorID string) string {
	return channelPrefix + actorID
}

// RedisRelay pushes notifications through per-actor Redis channels so that the
// instance holding the recipient's connection delivers it. Each instance only
// subscribes to the rooms it currently hosts.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub

	// serializes subscription changes
	subMu sync.Mutex
}

func NewRedisRelay(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisRelay {
	r := &RedisRelay{
		client: client,
		hub:    hub,
		logger: logger.Named("relay"),
	}
	hub.OnRoomChange(r.roomChanged)
	return r
}

func (r *RedisRelay) current() *redis.PubSub {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub
}

// roomChanged follows the hub's current state rather than the event's flag,
// since listener calls for the same room can arrive out of order.
func (r *RedisRelay) roomChanged(actorID string, _ bool) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	ps := r.current()
	if ps == nil {
		return
	}
	ctx := context.Background()
	online := r.hub.Online(actorID)
	var err error
	if online {
		err = ps.Subscribe(ctx, channelFor(actorID))
	} else {
		err = ps.Unsubscribe(ctx, channelFor(actorID))
	}
	if err != nil {
		r.logger.Warn("Room subscription change failed", zap.String("actor", actorID), zap.Bool("online", online), zap.Error(err))
	}
}

// Push publishes the notification frame. delivered reports whether any instance was subscribed.
func (r *RedisRelay) Push(ctx context.Context, recipientID string, n *models.Notification) (bool, error) {
	frame, err := Encode(EventNotification, n)
	if err != nil {
		return false, err
	}
	receivers, err := r.client.Publish(ctx, channelFor(recipientID), frame).Result()
	if err != nil {
		return false, err
	}
	return receivers > 0, nil
}

// Run relays published frames into the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.client.Subscribe(ctx)
	r.mu.Lock()
	r.pubsub = ps
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.pubsub = nil
		r.mu.Unlock()
		_ = ps.Close()
	}()

	if rooms := r.hub.Rooms(); len(rooms) > 0 {
		channels := make([]string, len(rooms))
		for i, id := range rooms {
			channels[i] = channelFor(id)
		}
		if err := ps.Subscribe(ctx, channels...); err != nil {
			return err
		}
	}

	r.logger.Info("Redis relay started")
	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Redis relay stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			actorID := strings.TrimPrefix(msg.Channel, channelPrefix)
			r.hub.Deliver(actorID, []byte(msg.Payload))
		}
	}
}
