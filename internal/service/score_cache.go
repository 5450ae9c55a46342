package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/trust-engine/internal/model"
	"github.com/d60-Lab/trust-engine/pkg/logger"
)

// ScoreCache is a redis cache-aside layer over current trust scores.
// A nil *ScoreCache is valid and does nothing, so callers never branch on
// whether caching is enabled.
type ScoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewScoreCache(client *redis.Client, ttl time.Duration) *ScoreCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ScoreCache{client: client, ttl: ttl}
}

func scoreKey(userID string) string { return fmt.Sprintf("trust:score:%s", userID) }

func (c *ScoreCache) Get(ctx context.Context, userID string) (*model.TrustScore, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, scoreKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var s model.TrustScore
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false
	}
	return &s, true
}

func (c *ScoreCache) Set(ctx context.Context, s *model.TrustScore) {
	if c == nil || s == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, scoreKey(s.UserID), payload, c.ttl).Err(); err != nil {
		logger.Warn("score cache set failed", zap.String("user", s.UserID), zap.Error(err))
	}
}

// Invalidate drops the cached score after a recompute so readers never see
// a stale value longer than one round trip.
func (c *ScoreCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, scoreKey(userID)).Err(); err != nil {
		logger.Warn("score cache invalidate failed", zap.String("user", userID), zap.Error(err))
	}
}
