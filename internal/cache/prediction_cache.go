package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	redisv9 "github.com/redis/go-redis/v9"

	"listwise/internal/factor"
)

// setIfVersion stores the prediction only while the category version still equals
// the one the caller read before computing it.
var setIfVersion = redisv9.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// PredictionCache keeps the latest factorization of a category. Every write to the
// category bumps its version, and a prediction is stored only against the version
// it was computed from, so a reader that started from an older snapshot cannot put
// stale predictions back.
type PredictionCache struct {
	client        *redisv9.Client
	predictionTTL time.Duration
}

func NewPredictionCache(client *redisv9.Client, predictionTTL time.Duration) *PredictionCache {
	if predictionTTL <= 0 {
		predictionTTL = 5 * time.Minute
	}
	return &PredictionCache{
		client:        client,
		predictionTTL: predictionTTL,
	}
}

func (c *PredictionCache) GetPrediction(ctx context.Context, category string) (*factor.Prediction, bool, error) {
	raw, err := c.client.Get(ctx, c.predictionKey(category)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get prediction failed: %w", err)
	}

	var pred factor.Prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached prediction failed: %w", err)
	}
	return &pred, true, nil
}

// Version returns the current write version of a category, 0 before any write.
func (c *PredictionCache) Version(ctx context.Context, category string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(category)).Int64()
	if errors.Is(err, redisv9.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get prediction version failed: %w", err)
	}
	return v, nil
}

// SetPrediction stores pred if the category is still at version. stored is false
// when a write happened in between.
func (c *PredictionCache) SetPrediction(ctx context.Context, category string, pred *factor.Prediction, version int64) (stored bool, err error) {
	payload, err := json.Marshal(pred)
	if err != nil {
		return false, fmt.Errorf("marshal prediction cache failed: %w", err)
	}
	n, err := setIfVersion.Run(ctx, c.client,
		[]string{c.predictionKey(category), c.versionKey(category)},
		strconv.FormatInt(version, 10), payload, c.predictionTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set prediction failed: %w", err)
	}
	return n == 1, nil
}

// Invalidate drops the cached prediction and bumps the category version.
func (c *PredictionCache) Invalidate(ctx context.Context, category string) error {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, c.versionKey(category))
	pipe.Del(ctx, c.predictionKey(category))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate prediction failed: %w", err)
	}
	return nil
}

func (c *PredictionCache) predictionKey(category string) string {
	return fmt.Sprintf("recs:prediction:%s", category)
}

func (c *PredictionCache) versionKey(category string) string {
	return fmt.Sprintf("recs:prediction:version:%s", category)
}
