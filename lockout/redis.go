package lockout

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces lockout keys.
const DefaultKeyPrefix = "sts:lockout:"

// Redis is a Tracker sharing lockout state across instances. Failure counters
// expire after the lockout window so stale failures do not accumulate.
type Redis struct {
	client redis.UniversalClient
	policy Policy
	prefix string
}

// RedisOption configures a Redis tracker.
type RedisOption func(*Redis)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedis builds a tracker on top of an existing client. The client
// lifecycle stays with the caller.
func NewRedis(client redis.UniversalClient, policy Policy, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		policy: policy,
		prefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Connect parses url, pings the server and returns the client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "redis ping failed")
	}
	return client, nil
}

func (r *Redis) failuresKey(key string) string {
	return r.prefix + "failures:" + key
}

func (r *Redis) lockedKey(key string) string {
	return r.prefix + "locked:" + key
}

// IsLockedOut implements Tracker.
func (r *Redis) IsLockedOut(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	n, err := r.client.Exists(ctx, r.lockedKey(key)).Result()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryExternal, "read lockout state")
	}
	return n > 0, nil
}

// RecordFailure implements Tracker.
func (r *Redis) RecordFailure(ctx context.Context, key string) (State, error) {
	if key == "" {
		return State{}, ErrEmptyKey
	}

	if ttl, err := r.client.PTTL(ctx, r.lockedKey(key)).Result(); err != nil {
		return State{}, goerrors.Wrap(err, goerrors.CategoryExternal, "read lockout state")
	} else if ttl > 0 {
		return State{LockedUntil: time.Now().Add(ttl)}, nil
	}

	window := r.policy.LockoutDuration
	if window <= 0 {
		window = DefaultPolicy().LockoutDuration
	}

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, r.failuresKey(key))
	pipe.Expire(ctx, r.failuresKey(key), window)
	if _, err := pipe.Exec(ctx); err != nil {
		return State{}, goerrors.Wrap(err, goerrors.CategoryExternal, "record failed attempt")
	}

	state := State{Failures: int(incr.Val())}
	if !r.policy.Enabled() || state.Failures < r.policy.MaxFailedAttempts {
		return state, nil
	}

	pipe = r.client.TxPipeline()
	pipe.Set(ctx, r.lockedKey(key), "1", r.policy.LockoutDuration)
	pipe.Del(ctx, r.failuresKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return State{}, goerrors.Wrap(err, goerrors.CategoryExternal, "lock account")
	}

	return State{LockedUntil: time.Now().Add(r.policy.LockoutDuration)}, nil
}

// Reset implements Tracker.
func (r *Redis) Reset(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := r.client.Del(ctx, r.failuresKey(key), r.lockedKey(key)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "reset lockout state")
	}
	return nil
}
