package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"veilchat/contract"
	"veilchat/domain"
)

// presenceTTL bounds how long a crashed instance keeps its users
// listed as online. Live instances refresh it from a background
// worker.
const presenceTTL = 90 * time.Second

// RedisRegistry mirrors connection membership into a shared redis
// store so that every instance of a multi-instance deployment sees
// the same answer to "is user X online". Delivery stays local: sinks
// cannot cross process boundaries, so ConnectionsOf returns only the
// connections held by this instance. Offline peers are served by
// store-and-forward either way.
type RedisRegistry struct {
	local  *Registry
	client *redis.Client
	log    *slog.Logger
}

func NewRedisRegistry(ctx context.Context, redisURL string, log *slog.Logger) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisRegistry{local: NewRegistry(), client: client, log: log}, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

func userKey(userID domain.UserID) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

func (r *RedisRegistry) Add(userID domain.UserID, conn contract.Connection) {
	r.local.Add(userID, conn)

	ctx := context.Background()
	key := userKey(userID)
	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, key, conn.Handle)
	pipe.Expire(ctx, key, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		// The shared view degrades; the local one stays correct.
		r.log.Warn("presence mirror add failed", "user_id", userID, "error", err)
	}
}

func (r *RedisRegistry) Remove(userID domain.UserID, handle string) {
	r.local.Remove(userID, handle)

	if err := r.client.SRem(context.Background(), userKey(userID), handle).Err(); err != nil {
		r.log.Warn("presence mirror remove failed", "user_id", userID, "error", err)
	}
}

func (r *RedisRegistry) IsOnline(userID domain.UserID) bool {
	count, err := r.client.SCard(context.Background(), userKey(userID)).Result()
	if err != nil {
		r.log.Warn("presence mirror read failed, using local view", "user_id", userID, "error", err)
		return r.local.IsOnline(userID)
	}
	return count > 0
}

func (r *RedisRegistry) ConnectionsOf(userID domain.UserID) []contract.Connection {
	return r.local.ConnectionsOf(userID)
}

// Refresh re-arms the TTL of every user this instance holds a
// connection for. Called periodically by the presence sync worker.
func (r *RedisRegistry) Refresh(ctx context.Context) error {
	r.local.mu.RLock()
	ids := make([]domain.UserID, 0, len(r.local.users))
	for id := range r.local.users {
		ids = append(ids, id)
	}
	r.local.mu.RUnlock()

	pipe := r.client.Pipeline()
	for _, id := range ids {
		pipe.Expire(ctx, userKey(id), presenceTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}
