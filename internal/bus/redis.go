package bus

import (
	"context"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "comms:group:"

// Redis is a Registry backed by Redis Pub/Sub so several processes can share
// fan-out groups. Local members are tracked in an embedded Local registry;
// Publish goes through Redis and every subscribed process relays the event to
// its own members. Same at-most-once, no-backlog guarantee as Local.
type Redis struct {
	log    *zap.Logger
	client *goredis.Client
	local  *Local

	mu   sync.Mutex
	subs map[string]*goredis.PubSub
}

// NewRedis constructs a Redis-backed registry and verifies connectivity.
func NewRedis(ctx context.Context, log *zap.Logger, redisURL string) (*Redis, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{
		log:    log,
		client: client,
		local:  NewLocal(log),
		subs:   make(map[string]*goredis.PubSub),
	}, nil
}

// Join adds m to group and subscribes the process to the group's Redis
// channel on first local member.
func (r *Redis) Join(ctx context.Context, group string, m Member) {
	r.local.Join(ctx, group, m)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[group]; ok {
		return
	}
	sub := r.client.Subscribe(context.WithoutCancel(ctx), channelPrefix+group)
	r.subs[group] = sub
	go r.relay(group, sub)
}

// Leave removes m from group and drops the Redis subscription once the last
// local member is gone.
func (r *Redis) Leave(ctx context.Context, group string, m Member) {
	r.local.Leave(ctx, group, m)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.local.MemberCount(group) == 0 {
		if sub, ok := r.subs[group]; ok {
			delete(r.subs, group)
			if err := sub.Close(); err != nil {
				r.log.Warn("closing group subscription", zap.String("group", group), zap.Error(err))
			}
		}
	}
}

// Publish sends event through Redis; subscribed processes (this one included)
// relay it to their local members. Publish failures are logged and
// suppressed.
func (r *Redis) Publish(ctx context.Context, group string, event []byte) {
	if err := r.client.Publish(ctx, channelPrefix+group, event).Err(); err != nil {
		r.log.Warn("redis publish failed", zap.String("group", group), zap.Error(err))
	}
}

// relay forwards messages from the group's Redis channel to local members
// until the subscription is closed.
func (r *Redis) relay(group string, sub *goredis.PubSub) {
	for msg := range sub.Channel() {
		r.local.Publish(context.Background(), group, []byte(msg.Payload))
	}
}

// Close shuts down all subscriptions and the client.
func (r *Redis) Close() error {
	r.mu.Lock()
	for group, sub := range r.subs {
		_ = sub.Close()
		delete(r.subs, group)
	}
	r.mu.Unlock()
	return r.client.Close()
}
