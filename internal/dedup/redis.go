package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by Redis, for multi-node deployments where
// every node must see every delivery id. Records expire via key TTL.
type Redis struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedis connects to Redis at the given URL (redis://...) and pings
// it before returning.
func NewRedis(ctx context.Context, url string, retention time.Duration) (*Redis, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Redis{client: client, retention: retention}, nil
}

func redisKey(provider Provider, deliveryID string) string {
	return "zyro:delivery:" + string(provider) + ":" + deliveryID
}

// Reserve uses SET NX so exactly one of two concurrent deliveries with
// the same id observes fresh=true.
func (r *Redis) Reserve(ctx context.Context, provider Provider, deliveryID string) (bool, Outcome, error) {
	k := redisKey(provider, deliveryID)
	set, err := r.client.SetNX(ctx, k, string(OutcomeReceived), r.retention).Result()
	if err != nil {
		return false, "", fmt.Errorf("reserving delivery %s: %w", deliveryID, err)
	}
	if set {
		return true, "", nil
	}
	prior, err := r.client.Get(ctx, k).Result()
	if err == redis.Nil {
		// Raced with expiry; the delivery is effectively fresh but the
		// reservation was lost. Retry once.
		set, err = r.client.SetNX(ctx, k, string(OutcomeReceived), r.retention).Result()
		if err != nil {
			return false, "", fmt.Errorf("re-reserving delivery %s: %w", deliveryID, err)
		}
		return set, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("reading delivery %s: %w", deliveryID, err)
	}
	return false, Outcome(prior), nil
}

func (r *Redis) SetOutcome(ctx context.Context, provider Provider, deliveryID string, outcome Outcome) error {
	k := redisKey(provider, deliveryID)
	if err := r.client.Set(ctx, k, string(outcome), r.retention).Err(); err != nil {
		return fmt.Errorf("recording outcome for %s: %w", deliveryID, err)
	}
	return nil
}

func (r *Redis) Outcome(ctx context.Context, provider Provider, deliveryID string) (Outcome, bool, error) {
	v, err := r.client.Get(ctx, redisKey(provider, deliveryID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading outcome for %s: %w", deliveryID, err)
	}
	return Outcome(v), true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
