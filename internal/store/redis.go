package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
)

const sessionIndexKey = "rostra:sessions"

// createScript installs a new session document iff the version key does
// not exist yet. Returns 1 on success, 0 when the id is taken.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
return 1
`)

// saveScript applies a snapshot iff the stored version is strictly lower.
// Returns 1 on success, 0 on a version conflict, -1 when the session was
// never created. A positive ARGV[3] sets an expiry on both keys.
var saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
  return -1
end
local current = tonumber(redis.call('GET', KEYS[2]))
if current >= tonumber(ARGV[2]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
  redis.call('EXPIRE', KEYS[2], ttl)
end
return 1
`)

// RedisStore persists sessions in redis: one JSON document and one
// version counter per session, plus a sorted-set index ordered by
// creation time. Version checks run server-side in Lua so concurrent
// writers from different processes cannot interleave.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	closed atomic.Bool
}

// OpenRedis connects to redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewPersistenceError("redis connect", err)
	}
	return &RedisStore{client: client, ttl: cfg.TTL()}, nil
}

func sessionKey(id string) string { return fmt.Sprintf("rostra:session:%s", id) }
func versionKey(id string) string { return fmt.Sprintf("rostra:session:%s:version", id) }

// Create persists a brand-new session and indexes it.
func (r *RedisStore) Create(ctx context.Context, s *debate.Session) error {
	if r.closed.Load() {
		return errors.ErrStoreClosed
	}
	data, err := marshalSession(s)
	if err != nil {
		return err
	}

	keys := []string{sessionKey(s.ID), versionKey(s.ID)}
	ok, err := createScript.Run(ctx, r.client, keys, data, s.Version).Int()
	if err != nil {
		return errors.NewPersistenceError("redis create", err)
	}
	if ok == 0 {
		return errors.ErrSessionExists
	}

	err = r.client.ZAdd(ctx, sessionIndexKey, redis.Z{
		Score:  float64(s.CreatedAt.Unix()),
		Member: s.ID,
	}).Err()
	if err != nil {
		return errors.NewPersistenceError("redis index", err)
	}
	return nil
}

// Save persists a snapshot if it is newer than the stored version.
// Completed sessions pick up the configured expiry so finished debates
// age out of redis on their own.
func (r *RedisStore) Save(ctx context.Context, s *debate.Session) error {
	if r.closed.Load() {
		return errors.ErrStoreClosed
	}
	data, err := marshalSession(s)
	if err != nil {
		return err
	}

	var ttlSeconds int64
	if s.Frozen() && r.ttl > 0 {
		ttlSeconds = int64(r.ttl.Seconds())
	}

	keys := []string{sessionKey(s.ID), versionKey(s.ID)}
	res, err := saveScript.Run(ctx, r.client, keys, data, s.Version, ttlSeconds).Int()
	if err != nil {
		return errors.NewPersistenceError("redis save", err)
	}
	switch res {
	case -1:
		return errors.ErrSessionNotFound
	case 0:
		return errors.ErrVersionConflict
	}
	return nil
}

// Load retrieves a session by id.
func (r *RedisStore) Load(ctx context.Context, id string) (*debate.Session, error) {
	if r.closed.Load() {
		return nil, errors.ErrStoreClosed
	}
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.NewPersistenceError("redis load", err)
	}
	return unmarshalSession(data)
}

// List returns summaries of stored sessions, newest first. Index entries
// whose documents have expired are pruned as a side effect.
func (r *RedisStore) List(ctx context.Context) ([]Summary, error) {
	if r.closed.Load() {
		return nil, errors.ErrStoreClosed
	}
	ids, err := r.client.ZRevRange(ctx, sessionIndexKey, 0, -1).Result()
	if err != nil {
		return nil, errors.NewPersistenceError("redis list", err)
	}
	if len(ids) == 0 {
		return []Summary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	docs, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.NewPersistenceError("redis list", err)
	}

	summaries := make([]Summary, 0, len(ids))
	var expired []any
	for i, doc := range docs {
		raw, ok := doc.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		s, err := unmarshalSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summarize(s))
	}
	if len(expired) > 0 {
		r.client.ZRem(ctx, sessionIndexKey, expired...)
	}
	return summaries, nil
}

// Delete removes a session document, its version key, and its index entry.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if r.closed.Load() {
		return errors.ErrStoreClosed
	}
	removed, err := r.client.Del(ctx, sessionKey(id), versionKey(id)).Result()
	if err != nil {
		return errors.NewPersistenceError("redis delete", err)
	}
	r.client.ZRem(ctx, sessionIndexKey, id)
	if removed == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

// Ping checks the redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return errors.ErrStoreClosed
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.NewPersistenceError("redis ping", err)
	}
	return nil
}

// Close closes the redis connection.
func (r *RedisStore) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.client.Close()
}
