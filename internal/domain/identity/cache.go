package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const accountCachePrefix = "booking:account:"

// CachedDirectory is a read-through Redis cache in front of another
// Directory. Accounts are never updated in place, so entries only expire.
// Cache failures fall through to the wrapped directory.
type CachedDirectory struct {
	next   Directory
	rdb    redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedDirectory(next Directory, rdb redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *CachedDirectory {
	return &CachedDirectory{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "account_cache").Logger(),
	}
}

func (d *CachedDirectory) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	key := accountCachePrefix + id.String()

	raw, err := d.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var a Account
		if jsonErr := json.Unmarshal(raw, &a); jsonErr == nil {
			return &a, nil
		}
		d.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		d.logger.Warn().Err(err).Str("key", key).Msg("account cache read failed")
	}

	a, err := d.next.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(a); err == nil {
		if err := d.rdb.Set(ctx, key, b, d.ttl).Err(); err != nil {
			d.logger.Warn().Err(err).Str("key", key).Msg("account cache write failed")
		}
	}
	return a, nil
}

// Invalidate drops the cached entry for id.
func (d *CachedDirectory) Invalidate(ctx context.Context, id uuid.UUID) error {
	return d.rdb.Del(ctx, accountCachePrefix+id.String()).Err()
}
