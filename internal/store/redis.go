package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"driftpad/internal/note"
)

// notesKey is the hash holding the full set: field = note id, value = JSON.
const notesKey = "driftpad:notes"

// upsertScript applies the last-write-wins guard server-side so the
// compare-and-set is atomic per note even with concurrent sessions.
var upsertScript = redis.NewScript(`
	local current = redis.call('HGET', KEYS[1], ARGV[1])
	if current then
		local decoded = cjson.decode(current)
		if tonumber(decoded['updatedAt']) >= tonumber(ARGV[3]) then
			return 0
		end
	end
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	return 1
`)

// RedisStore keeps the authoritative note set in a Redis hash.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetAll(ctx context.Context) ([]note.Note, error) {
	values, err := s.client.HGetAll(ctx, notesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read notes hash: %w", err)
	}

	notes := make([]note.Note, 0, len(values))
	for id, raw := range values {
		var n note.Note
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("decode note %s: %w", id, err)
		}
		notes = append(notes, n)
	}
	return note.SortByID(notes), nil
}

func (s *RedisStore) UpsertBatch(ctx context.Context, notes []note.Note) error {
	for _, n := range notes {
		raw, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode note %s: %w", n.ID, err)
		}
		if err := upsertScript.Run(ctx, s.client, []string{notesKey}, n.ID, raw, n.UpdatedAt).Err(); err != nil {
			return fmt.Errorf("upsert note %s: %w", n.ID, err)
		}
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
