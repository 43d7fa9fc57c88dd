package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/salesight/salesight/pkg/config"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg *config.Config) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.GetRedisAddr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

// NotificationBus pushes realtime notification payloads onto per-user Redis
// channels. The web tier subscribes and forwards to connected clients; an
// absent subscriber just means the message is dropped, which is fine because
// the durable notification record already exists.
type NotificationBus struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewNotificationBus constructs the Redis-backed notification bus
func NewNotificationBus(rdb *goredis.Client, logger *zap.Logger) *NotificationBus {
	return &NotificationBus{rdb: rdb, logger: logger}
}

// channelFor returns the pub/sub channel for one user's notifications.
func channelFor(userID uuid.UUID) string {
	return fmt.Sprintf("notify:user:%s", userID)
}

// Broadcast publishes the payload as JSON to the user's channel.
func (b *NotificationBus) Broadcast(ctx context.Context, userID uuid.UUID, payload interface{}) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("notification bus not initialized")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelFor(userID), raw).Err()
}

// Subscribe forwards each payload published on the user's channel to onMsg
// until ctx is cancelled. Used by the delivery tier, not the workers.
func (b *NotificationBus) Subscribe(ctx context.Context, userID uuid.UUID, onMsg func(raw []byte)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("notification bus not initialized")
	}

	sub := b.rdb.Subscribe(ctx, channelFor(userID))

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				onMsg([]byte(m.Payload))
			}
		}
	}()
	return nil
}
