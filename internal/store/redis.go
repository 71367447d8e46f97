package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/ucode/internal/domain"
)

const maxWatchRetries = 5

// createScript claims the host index and writes the document in one step,
// so a crash can't leave an index without its document.
// KEYS: host index, document. ARGV: id, document, ttl in ms (0 keeps forever).
var createScript = redis.NewScript(`
local ttl = tonumber(ARGV[3])
local ok
if ttl > 0 then
  ok = redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ttl)
else
  ok = redis.call('SET', KEYS[1], ARGV[1], 'NX')
end
if not ok then
  return 0
end
if ttl > 0 then
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
else
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisStore struct {
	client *redis.Client
	prefix string
	// expire documents together with their lease instead of keeping them forever.
	leaseTTL bool
}

func NewRedisStore(client *redis.Client, leaseTTL bool) *RedisStore {
	return &RedisStore{
		client:   client,
		prefix:   "ucode:session:",
		leaseTTL: leaseTTL,
	}
}

func (r *RedisStore) key(id domain.SessionID) string {
	return r.prefix + string(id)
}

func (r *RedisStore) hostKey(host domain.Identity) string {
	return r.prefix + "host:" + string(host)
}

func (r *RedisStore) ttl(s *domain.Session) time.Duration {
	if !r.leaseTTL {
		return 0
	}
	if d := time.Until(s.ExpiresAt); d > 0 {
		return d
	}
	return time.Second
}

func (r *RedisStore) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("module", "store.redis").Str("session", string(id)).Msg("get session")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return decodeSession(val)
}

func (r *RedisStore) FindByHost(ctx context.Context, host domain.Identity) (*domain.Session, error) {
	id, err := r.client.Get(ctx, r.hostKey(host)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("module", "store.redis").Str("host", string(host)).Msg("get host index")
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s, err := r.Get(ctx, domain.SessionID(id))
	if errors.Is(err, domain.ErrSessionNotFound) {
		if err := releaseScript.Run(ctx, r.client, []string{r.hostKey(host)}, id).Err(); err != nil {
			log.Warn().Err(err).Str("module", "store.redis").Str("host", string(host)).Msg("release dangling host index")
		} else {
			log.Warn().Str("module", "store.redis").Str("host", string(host)).Str("session", id).Msg("released dangling host index")
		}
	}
	return s, err
}

// Create claims the host index with SET NX so two racing creates for one
// host can't both win.
func (r *RedisStore) Create(ctx context.Context, s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}
	ttl := r.ttl(s)

	keys := []string{r.hostKey(s.Host), r.key(s.ID)}
	claimed, err := createScript.Run(ctx, r.client, keys, string(s.ID), data, ttl.Milliseconds()).Int()
	if err != nil {
		log.Error().Err(err).Str("module", "store.redis").Str("session", string(s.ID)).Msg("create session")
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if claimed == 0 {
		return domain.ErrHostTaken
	}
	return nil
}

// Update is an optimistic read-modify-write under WATCH.
func (r *RedisStore) Update(ctx context.Context, id domain.SessionID, patch domain.SessionPatch) (*domain.Session, error) {
	key := r.key(id)
	var out *domain.Session

	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		s, err := decodeSession(val)
		if err != nil {
			return err
		}
		patch.Apply(s)
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		if err == nil {
			out = s
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrSessionNotFound):
			return nil, err
		default:
			log.Error().Err(err).Str("module", "store.redis").Str("session", string(id)).Msg("update session")
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	return nil, fmt.Errorf("%w: too much contention on %s", domain.ErrStoreUnavailable, id)
}

func decodeSession(val []byte) (*domain.Session, error) {
	var s domain.Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	return &s, nil
}
