// Package cache holds the Redis-backed read cache for project progress. The
// database stays authoritative; the cache only cuts read load on the
// dashboard endpoints and is invalidated on every project.updated event.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gridworks/internal/progress"
)

const progressKeyFmt = "project:progress:%d"

type ProgressCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewProgressCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ProgressCache {
	return &ProgressCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the cached breakdown, or nil on miss. Redis failures degrade to
// a miss so reads fall through to the database.
func (c *ProgressCache) Get(ctx context.Context, projectID int64) *progress.Result {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(progressKeyFmt, projectID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("progress cache read failed", zap.Int64("project_id", projectID), zap.Error(err))
		}
		return nil
	}

	var res progress.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.Warn("progress cache entry corrupt", zap.Int64("project_id", projectID), zap.Error(err))
		return nil
	}
	return &res
}

func (c *ProgressCache) Set(ctx context.Context, projectID int64, res *progress.Result) {
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(progressKeyFmt, projectID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("progress cache write failed", zap.Int64("project_id", projectID), zap.Error(err))
	}
}

func (c *ProgressCache) Invalidate(ctx context.Context, projectID int64) {
	if err := c.rdb.Del(ctx, fmt.Sprintf(progressKeyFmt, projectID)).Err(); err != nil {
		c.logger.Warn("progress cache invalidation failed", zap.Int64("project_id", projectID), zap.Error(err))
	}
}
