package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis relays messages over Redis pub/sub. One client serves as both
// publisher and subscriber.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at addr ("host:port").
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &Redis{client: rdb}, nil
}

func (r *Redis) Publish(ctx context.Context, subject string, data []byte) error {
	return r.client.Publish(ctx, subject, data).Err()
}

// Subscribe returns a channel of payloads published to subject. Call the
// returned cancel function to unsubscribe.
func (r *Redis) Subscribe(subject string) (<-chan []byte, func(), error) {
	ctx := context.Background()
	pubsub := r.client.Subscribe(ctx, subject)
	// Wait for the subscription confirmation so no message is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}

	out := make(chan []byte, 256)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
