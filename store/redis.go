package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport-level Redis failures so callers can
// distinguish backend outage from contract errors like ErrVersionMismatch.
var ErrRedisUnavailable = errors.New("store: redis unavailable")

const (
	putStatusNotFound int64 = -1
	putStatusMismatch int64 = -2
	putStatusOK       int64 = 0
)

// Documents live in a hash: "v" holds the version counter, "d" the JSON body.
// The compare-and-swap runs server-side so the version check and the write
// are one atomic step regardless of how many service instances race.
const putDocumentScript = `
local v = redis.call("HGET", KEYS[1], "v")
if not v then
  return {-1, 0}
end
if tonumber(v) ~= tonumber(ARGV[1]) then
  return {-2, tonumber(v)}
end
local next = tonumber(v) + 1
redis.call("HSET", KEYS[1], "v", next, "d", ARGV[2])
return {0, next}
`

var putDocumentLua = redis.NewScript(putDocumentScript)

const createDocumentScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "v", 1, "d", ARGV[1])
return 1
`

var createDocumentLua = redis.NewScript(createDocumentScript)

// RedisStore is a Redis-backed DocumentStore.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore builds a RedisStore keyed under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "nh"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) docKey(id string) string {
	return s.prefix + ":doc:" + id
}

// Get implements DocumentStore.
func (s *RedisStore) Get(ctx context.Context, id string) (Document, error) {
	vals, err := s.client.HMGet(ctx, s.docKey(id), "v", "d").Result()
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if vals[0] == nil || vals[1] == nil {
		return Document{}, ErrNotFound
	}

	version, err := strconv.ParseInt(vals[0].(string), 10, 64)
	if err != nil {
		return Document{}, fmt.Errorf("store: corrupt version counter for %q: %w", id, err)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(vals[1].(string)), &fields); err != nil {
		return Document{}, fmt.Errorf("store: corrupt document body for %q: %w", id, err)
	}

	return Document{ID: id, Version: version, Fields: fields}, nil
}

// Put implements DocumentStore via a server-side compare-and-swap.
func (s *RedisStore) Put(ctx context.Context, id string, expectedVersion int64, fields map[string]any) (int64, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}

	res, err := putDocumentLua.Run(ctx, s.client, []string{s.docKey(id)}, expectedVersion, string(body)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	reply, ok := res.([]any)
	if !ok || len(reply) != 2 {
		return 0, fmt.Errorf("store: unexpected CAS reply %v", res)
	}
	status, _ := reply[0].(int64)
	version, _ := reply[1].(int64)

	switch status {
	case putStatusOK:
		return version, nil
	case putStatusNotFound:
		return 0, ErrNotFound
	case putStatusMismatch:
		return 0, ErrVersionMismatch
	default:
		return 0, fmt.Errorf("store: unexpected CAS status %d", status)
	}
}

// Create implements DocumentStore.
func (s *RedisStore) Create(ctx context.Context, id string, fields map[string]any) (int64, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}

	created, err := createDocumentLua.Run(ctx, s.client, []string{s.docKey(id)}, string(body)).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if created == 0 {
		return 0, ErrExists
	}
	return 1, nil
}

// RedisBaseline persists the last-valid-auth moment in a single Redis key,
// shared by every service instance.
type RedisBaseline struct {
	client redis.UniversalClient
	key    string
}

// NewRedisBaseline builds a baseline cell keyed under prefix.
func NewRedisBaseline(client redis.UniversalClient, prefix string) *RedisBaseline {
	if prefix == "" {
		prefix = "nh"
	}
	return &RedisBaseline{client: client, key: prefix + ":grace:last_valid"}
}

// LastValidAuthMoment reads the cell; nil when never written.
func (b *RedisBaseline) LastValidAuthMoment(ctx context.Context) (*time.Time, error) {
	raw, err := b.client.Get(ctx, b.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("store: corrupt grace baseline: %w", err)
	}
	t := time.Unix(unix, 0).UTC()
	return &t, nil
}

// RecordValidAuthMoment overwrites the cell with t.
func (b *RedisBaseline) RecordValidAuthMoment(ctx context.Context, t time.Time) error {
	if err := b.client.Set(ctx, b.key, strconv.FormatInt(t.Unix(), 10), 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
