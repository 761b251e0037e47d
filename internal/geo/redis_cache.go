package geo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"routeplan/internal/logging"
	"routeplan/internal/model"
)

// RedisCache is a read-through cache in front of Next keyed by provider
// namespace, pincode and order id. Redis failures are logged and bypassed.
type RedisCache struct {
	Client redis.Cmdable
	Next   Provider
	TTL    time.Duration
	// Prefix includes the namespace; entries written under another
	// provider configuration are never read.
	Prefix string
	Log    *zap.Logger
}

// cacheVersion changes when the cached value format changes.
const cacheVersion = "v1"

// Namespace names a provider configuration for cache keys.
func Namespace(mode string, baseLat, baseLon float64) string {
	return mode + "@" + strconv.FormatFloat(baseLat, 'f', -1, 64) + "," + strconv.FormatFloat(baseLon, 'f', -1, 64)
}

func NewRedisCache(client redis.Cmdable, next Provider, ttl time.Duration, namespace string, log *zap.Logger) *RedisCache {
	return &RedisCache{
		Client: client,
		Next:   next,
		TTL:    ttl,
		Prefix: "routeplan:pos:" + cacheVersion + ":" + namespace + ":",
		Log:    logging.OrNop(log),
	}
}

// key hashes the pincode and order id so separators inside either value
// cannot make two orders share an entry.
func (c *RedisCache) key(o model.Order) string {
	h := sha256.New()
	h.Write([]byte(o.Pincode))
	h.Write([]byte{0})
	h.Write([]byte(o.OrderID))
	return c.Prefix + hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *RedisCache) Position(ctx context.Context, o model.Order) (model.Position, error) {
	key := c.key(o)
	v, err := c.Client.Get(ctx, key).Result()
	switch {
	case err == nil:
		pos, perr := decodePosition(v)
		if perr == nil {
			return pos, nil
		}
		c.Log.Warn("discarding bad cached position", zap.String("key", key), zap.Error(perr))
	case errors.Is(err, redis.Nil):
	default:
		c.Log.Warn("position cache read failed", zap.String("key", key), zap.Error(err))
	}
	pos, err := c.Next.Position(ctx, o)
	if err != nil {
		return pos, err
	}
	if err := c.Client.Set(ctx, key, encodePosition(pos), c.TTL).Err(); err != nil {
		c.Log.Warn("position cache write failed", zap.String("key", key), zap.Error(err))
	}
	return pos, nil
}

func encodePosition(p model.Position) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

func decodePosition(s string) (model.Position, error) {
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return model.Position{}, fmt.Errorf("decode position %q: missing separator", s)
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return model.Position{}, fmt.Errorf("decode position %q: %w", s, err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return model.Position{}, fmt.Errorf("decode position %q: %w", s, err)
	}
	return model.Position{Lat: la, Lon: lo}, nil
}
