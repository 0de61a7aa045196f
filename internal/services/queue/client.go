package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed holder can block a game.
const DefaultLockTTL = 30 * time.Second

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Client wraps the Redis client shared by the loop queue, the per-game
// locks and the event broadcaster.
type Client struct {
	rdb     *redis.Client
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLockTTL sets the expiry of game locks. Values <= 0 keep the default.
func WithLockTTL(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.lockTTL = d
		}
	}
}

// NewClient connects to Redis and checks the connection.
func NewClient(redisURL string, logger *slog.Logger, opts ...Option) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c := &Client{
		rdb:     rdb,
		lockTTL: DefaultLockTTL,
		logger:  logger,
	}
	for _, o := range opts {
		o(c)
	}

	logger.Info("Connected to Redis for loop queue", "addr", opt.Addr, "lock_ttl", c.lockTTL)
	return c, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetRedisClient returns the underlying Redis client for direct operations
func (c *Client) GetRedisClient() *redis.Client {
	return c.rdb
}

// LockKey is the Redis key of a game's lock.
func LockKey(gameStateID uuid.UUID) string {
	return fmt.Sprintf("game-lock:%s", gameStateID.String())
}

// LockGame takes the game's lock for owner. Every writer of a stored game
// (workers and API requests alike) holds it across load, apply and save.
// It returns false when someone else holds the lock.
func (c *Client) LockGame(ctx context.Context, gameStateID uuid.UUID, owner string) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, LockKey(gameStateID), owner, c.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to lock game %s: %w", gameStateID, err)
	}
	return ok, nil
}

// UnlockGame releases the game's lock if owner still holds it.
func (c *Client) UnlockGame(ctx context.Context, gameStateID uuid.UUID, owner string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{LockKey(gameStateID)}, owner).Err(); err != nil {
		return fmt.Errorf("failed to unlock game %s: %w", gameStateID, err)
	}
	return nil
}
