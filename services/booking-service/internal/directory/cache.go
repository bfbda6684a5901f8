package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// Source is what Cached wraps.
type Source interface {
	GetClinic(ctx context.Context, id string) (model.Clinic, bool, error)
	GetService(ctx context.Context, id string) (model.Service, bool, error)
}

// Cached is a read-through Redis cache in front of a Source. Redis failures
// are logged and fall through to the source.
type Cached struct {
	src    Source
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCached(src Source, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{src: src, rdb: rdb, ttl: ttl, prefix: "booking:directory", logger: logger}
}

func (c *Cached) clinicKey(id string) string  { return c.prefix + ":clinic:" + id }
func (c *Cached) serviceKey(id string) string { return c.prefix + ":service:" + id }

func (c *Cached) GetClinic(ctx context.Context, id string) (model.Clinic, bool, error) {
	return readThrough(ctx, c, c.clinicKey(id), func(ctx context.Context) (model.Clinic, bool, error) {
		return c.src.GetClinic(ctx, id)
	})
}

func (c *Cached) GetService(ctx context.Context, id string) (model.Service, bool, error) {
	return readThrough(ctx, c, c.serviceKey(id), func(ctx context.Context) (model.Service, bool, error) {
		return c.src.GetService(ctx, id)
	})
}

// InvalidateClinic drops a cached clinic so the next read goes to the source.
func (c *Cached) InvalidateClinic(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, c.clinicKey(id)).Err()
}

func (c *Cached) InvalidateService(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, c.serviceKey(id)).Err()
}

func readThrough[T any](ctx context.Context, c *Cached, key string, load func(context.Context) (T, bool, error)) (T, bool, error) {
	var zero T
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			return v, true, nil
		}
		c.logger.Warn("directory cache entry undecodable", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("directory cache read failed", "key", key, "err", err)
	}

	v, ok, err := load(ctx)
	if err != nil || !ok {
		return zero, ok, err
	}
	if body, jerr := json.Marshal(v); jerr == nil {
		if serr := c.rdb.Set(ctx, key, body, c.ttl).Err(); serr != nil {
			c.logger.Warn("directory cache write failed", "key", key, "err", serr)
		}
	}
	return v, true, nil
}
