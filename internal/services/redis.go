package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"twod-ledger-backend/internal/config"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// RedisStore keeps every record in a hash {data, ver}. Versions are bumped
// by the commit script, which is the only writer.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client), nil
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// KEYS: n check keys followed by m mutation keys.
// ARGV: n, m, n expected versions, then (op, data, ttl_ms) per mutation.
var commitScript = redis.NewScript(`
	local n = tonumber(ARGV[1])
	local m = tonumber(ARGV[2])

	for i = 1, n do
		local cur = tonumber(redis.call("HGET", KEYS[i], "ver") or "0")
		if cur ~= tonumber(ARGV[2 + i]) then
			return redis.error_reply("VERSION_CONFLICT " .. KEYS[i])
		end
	end

	local base = 2 + n
	for j = 1, m do
		local key = KEYS[n + j]
		local off = base + (j - 1) * 3
		local op = ARGV[off + 1]
		if op == "del" then
			redis.call("DEL", key)
		else
			local ver = tonumber(redis.call("HGET", key, "ver") or "0") + 1
			redis.call("HSET", key, "data", ARGV[off + 2], "ver", ver)
			local ttl = tonumber(ARGV[off + 3])
			if ttl > 0 then
				redis.call("PEXPIRE", key, ttl)
			else
				redis.call("PERSIST", key)
			end
		end
	end

	return "OK"
`)

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	vals, err := s.client.HMGet(ctx, key, "data", "ver").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return decodeHash(key, vals)
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.Commit(ctx, nil, []Mutation{{Key: key, Value: value, TTL: ttl}})
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.Commit(ctx, nil, []Mutation{{Key: key, Delete: true}})
}

func (s *RedisStore) Commit(ctx context.Context, checks []Check, mutations []Mutation) error {
	if len(checks) == 0 && len(mutations) == 0 {
		return nil
	}

	keys := make([]string, 0, len(checks)+len(mutations))
	args := make([]interface{}, 0, 2+len(checks)+3*len(mutations))
	args = append(args, len(checks), len(mutations))

	for _, c := range checks {
		keys = append(keys, c.Key)
		args = append(args, c.Version)
	}
	for _, m := range mutations {
		keys = append(keys, m.Key)
		if m.Delete {
			args = append(args, "del", "", 0)
			continue
		}
		args = append(args, "set", string(m.Value), m.TTL.Milliseconds())
	}

	err := commitScript.Run(ctx, s.client, keys, args...).Err()
	if err != nil {
		if strings.Contains(err.Error(), "VERSION_CONFLICT") {
			return fmt.Errorf("%w: %s", ErrVersionConflict, err.Error())
		}
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	seen := make(map[string]struct{})
	var keys []string

	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, escapePattern(prefix)+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
		}
		for _, k := range batch {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return []Entry{}, nil
	}
	sort.Strings(keys)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HMGet(ctx, k, "data", "ver")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", keys[i], err)
		}
		e, err := decodeHash(keys[i], vals)
		if err == ErrNotFound {
			// expired or deleted since the scan
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeHash(key string, vals []interface{}) (*Entry, error) {
	if len(vals) != 2 || vals[0] == nil {
		return nil, ErrNotFound
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected data type %T at %s", vals[0], key)
	}
	verStr, _ := vals[1].(string)
	ver, err := strconv.ParseInt(verStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad version at %s: %w", key, err)
	}
	return &Entry{Key: key, Value: []byte(data), Version: ver}, nil
}

func escapePattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
