package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

// Cache is the subset of the redis client the job cache needs.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedJobRepository serves status polls for finished jobs from redis and
// invalidates on writes. Every process that updates jobs must wrap its store
// with the same redis.
//
// Only terminal jobs are cached. A pending or processing row read from the
// store can be overtaken by a worker write before it reaches redis, so those
// always go to the store. Read-through fills use SETNX and never replace a
// value written by Update.
type CachedJobRepository struct {
	next  JobRepository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedJobRepository(next JobRepository, cache Cache, ttl time.Duration, log *slog.Logger) *CachedJobRepository {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedJobRepository{next: next, cache: cache, ttl: ttl, log: log}
}

func jobCacheKey(jobID, owner string) string {
	return "job:" + owner + ":" + jobID
}

func (c *CachedJobRepository) Create(ctx context.Context, job *entity.Job) error {
	return c.next.Create(ctx, job)
}

func (c *CachedJobRepository) Get(ctx context.Context, jobID, owner string) (*entity.Job, error) {
	key := jobCacheKey(jobID, owner)
	raw, err := c.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var job entity.Job
		if jsonErr := json.Unmarshal(raw, &job); jsonErr == nil {
			return &job, nil
		}
		c.log.Warn("job.cache.decode_failed", "job_id", jobID)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("job.cache.get_failed", "job_id", jobID, "error", err)
	}

	job, err := c.next.Get(ctx, jobID, owner)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, job)
	return job, nil
}

func (c *CachedJobRepository) Update(ctx context.Context, jobID, owner string, u entity.JobUpdate) (*entity.Job, error) {
	key := jobCacheKey(jobID, owner)
	if err := c.cache.Del(ctx, key).Err(); err != nil {
		c.log.Warn("job.cache.invalidate_failed", "job_id", jobID, "error", err)
	}
	job, err := c.next.Update(ctx, jobID, owner, u)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, job)
	return job, nil
}

func (c *CachedJobRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]entity.Job, error) {
	return c.next.ListByOwner(ctx, owner, limit)
}

func (c *CachedJobRepository) ListStale(ctx context.Context, status constants.JobStatus, before time.Time, limit int) ([]entity.Job, error) {
	return c.next.ListStale(ctx, status, before, limit)
}

func (c *CachedJobRepository) store(ctx context.Context, key string, job *entity.Job) {
	if !job.Status.Terminal() {
		return
	}
	b, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.log.Warn("job.cache.set_failed", "job_id", job.ID, "error", err)
	}
}

func (c *CachedJobRepository) fill(ctx context.Context, key string, job *entity.Job) {
	if !job.Status.Terminal() {
		return
	}
	b, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := c.cache.SetNX(ctx, key, b, c.ttl).Err(); err != nil {
		c.log.Warn("job.cache.set_failed", "job_id", job.ID, "error", err)
	}
}
