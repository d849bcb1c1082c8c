package status

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// DefaultKey is the redis list holding cycle summaries
const DefaultKey = "price-tracker:cycles"

// RedisStore keeps cycle summaries in a capped redis list so that the status
// survives restarts and is shared by the CLI and the server.
type RedisStore struct {
	client *redis.Client
	key    string
	size   int
}

// NewRedisStore creates a redis backed Store
func NewRedisStore(client *redis.Client, key string, size int) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &RedisStore{client: client, key: key, size: size}
}

func (s *RedisStore) Save(ctx context.Context, summary domain.CycleSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode cycle summary: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, 0, int64(s.size-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save cycle summary: %w", err)
	}
	return nil
}

func (s *RedisStore) Last(ctx context.Context) (domain.CycleSummary, bool, error) {
	summaries, err := s.Recent(ctx, 1)
	if err != nil || len(summaries) == 0 {
		return domain.CycleSummary{}, false, err
	}
	return summaries[0], true, nil
}

func (s *RedisStore) Recent(ctx context.Context, n int) ([]domain.CycleSummary, error) {
	if n <= 0 || n > s.size {
		n = s.size
	}

	values, err := s.client.LRange(ctx, s.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cycle summaries: %w", err)
	}

	out := make([]domain.CycleSummary, 0, len(values))
	for _, v := range values {
		var summary domain.CycleSummary
		if err := json.Unmarshal([]byte(v), &summary); err != nil {
			return nil, fmt.Errorf("failed to decode cycle summary: %w", err)
		}
		out = append(out, summary)
	}
	return out, nil
}
