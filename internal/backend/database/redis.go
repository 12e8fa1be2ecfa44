package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "goqr:record:"
	redisIndexKey  = "goqr:records"
	redisSeqKey    = "goqr:records:seq"
)

// RedisDatabase stores each record as a JSON string and keeps a sorted set
// of ids scored by insertion sequence.
type RedisDatabase struct {
	client *redis.Client
}

// NewRedisDatabase connects using a redis:// URL.
func NewRedisDatabase(connectionString string) (*RedisDatabase, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid redis connection string: %w", err)
	}
	return &RedisDatabase{client: redis.NewClient(opts)}, nil
}

func (r *RedisDatabase) CreateDatabase(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

func (r *RedisDatabase) DoesDatabaseExist(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *RedisDatabase) Close() error {
	return r.client.Close()
}

func (r *RedisDatabase) CreateRecord(ctx context.Context, record *Record) (*Record, error) {
	if record == nil || record.ID == "" {
		return nil, fmt.Errorf("record must have an id")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	created, err := r.client.SetNX(ctx, redisKeyPrefix+record.ID, payload, 0).Result()
	if err != nil {
		slog.Error("RedisDatabase: failed to store record", "id", record.ID, "error", err)
		return nil, fmt.Errorf("failed to store record %s: %w", record.ID, err)
	}
	if !created {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, record.ID)
	}

	seq, err := r.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to index record %s: %w", record.ID, err)
	}
	if err := r.client.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(seq), Member: record.ID}).Err(); err != nil {
		return nil, fmt.Errorf("failed to index record %s: %w", record.ID, err)
	}
	return record.clone(), nil
}

func (r *RedisDatabase) GetRecordByID(ctx context.Context, id string) (*Record, error) {
	payload, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}
	return decodeRecord(payload)
}

func (r *RedisDatabase) GetAllRecords(ctx context.Context) ([]*Record, error) {
	ids, err := r.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	records := make([]*Record, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKeyPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			slog.Warn("RedisDatabase: indexed record is missing", "id", ids[i])
			continue
		}
		record, err := decodeRecord([]byte(s))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeRecord(payload []byte) (*Record, error) {
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &record, nil
}
