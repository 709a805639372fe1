package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = time.Minute

// Resolver maps a bearer token to a user id.
type Resolver interface {
	UserID(token string) (string, error)
}

// CachedResolver puts a short-lived Redis cache in front of a Resolver so a
// hot token does not hit the identity platform on every request. Only the
// token's hash is stored. Cache failures fall through to the upstream
// resolver; rejections are never cached.
type CachedResolver struct {
	upstream Resolver
	client   *redis.Client
	prefix   string
	ttl      time.Duration
}

// NewCachedResolver wraps upstream with a Redis token cache.
func NewCachedResolver(upstream Resolver, addr, password string, ttl time.Duration) (*CachedResolver, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("identity cache redis addr is required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedResolver{
		upstream: upstream,
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: "gameshelf:identity:",
		ttl:    ttl,
	}, nil
}

// UserID resolves the token, consulting the cache first.
func (c *CachedResolver) UserID(token string) (string, error) {
	key := c.prefix + hashToken(token)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if cached, err := c.client.Get(ctx, key).Result(); err == nil && cached != "" {
		return cached, nil
	}

	userID, err := c.upstream.UserID(token)
	if err != nil {
		return "", err
	}
	_ = c.client.Set(ctx, key, userID, c.ttl).Err()
	return userID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
