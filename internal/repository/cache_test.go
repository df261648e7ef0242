package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

type fakeCache struct {
	data map[string]string
	sets int
	dels int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (f *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.sets++
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.Set(ctx, key, value, ttl)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCache) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.dels++
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type countingRepo struct {
	JobRepository
	gets int
}

func (c *countingRepo) Get(ctx context.Context, jobID, owner string) (*entity.Job, error) {
	c.gets++
	return c.JobRepository.Get(ctx, jobID, owner)
}

// interleavedRepo runs between once the store read finished and before the
// snapshot is handed back to the cache layer.
type interleavedRepo struct {
	JobRepository
	between func()
}

func (r *interleavedRepo) Get(ctx context.Context, jobID, owner string) (*entity.Job, error) {
	job, err := r.JobRepository.Get(ctx, jobID, owner)
	if r.between != nil {
		r.between()
		r.between = nil
	}
	return job, err
}

func TestCachedJobRepository_CachesOnlyFinishedJobs(t *testing.T) {
	base := &countingRepo{JobRepository: setupTestRepo(t)}
	cache := newFakeCache()
	repo := NewCachedJobRepository(base, cache, time.Minute, nil)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("job-1", "alice", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := repo.Get(ctx, "job-1", "alice"); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if base.gets != 2 || cache.sets != 0 {
		t.Errorf("pending job: store reads = %d, sets = %d, want 2/0", base.gets, cache.sets)
	}

	if _, err := repo.Update(ctx, "job-1", "alice", entity.ProcessingUpdate("working")); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if cache.sets != 0 {
		t.Errorf("processing job was cached")
	}

	if _, err := repo.Update(ctx, "job-1", "alice", entity.CompletedUpdate("alice/processed/job-1_result.json", "", 3, "")); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	reads := base.gets
	for i := 0; i < 3; i++ {
		got, err := repo.Get(ctx, "job-1", "alice")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != constants.JobStatusCompleted {
			t.Errorf("cached status = %q, want completed", got.Status)
		}
	}
	if base.gets != reads {
		t.Errorf("completed job read the store %d more times, want 0", base.gets-reads)
	}
	if cache.dels != 2 {
		t.Errorf("invalidations = %d, want 2", cache.dels)
	}
}

func TestCachedJobRepository_ReadThroughFillsFinishedJob(t *testing.T) {
	inner := setupTestRepo(t)
	ctx := context.Background()
	if err := inner.Create(ctx, newJob("job-1", "", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := inner.Update(ctx, "job-1", "", entity.FailedUpdate("engine down")); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	base := &countingRepo{JobRepository: inner}
	repo := NewCachedJobRepository(base, newFakeCache(), time.Minute, nil)
	for i := 0; i < 3; i++ {
		if _, err := repo.Get(ctx, "job-1", ""); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if base.gets != 1 {
		t.Errorf("store reads = %d, want 1", base.gets)
	}
}

// A poller whose store read is overtaken by a worker write must not put the
// older snapshot back into the shared cache.
func TestCachedJobRepository_SlowReaderNeverRestoresOlderStatus(t *testing.T) {
	tests := []struct {
		name  string
		setup []entity.JobUpdate
		write entity.JobUpdate
		want  constants.JobStatus
	}{
		{
			name:  "pending overtaken by processing",
			write: entity.ProcessingUpdate("processing started"),
			want:  constants.JobStatusProcessing,
		},
		{
			name:  "processing overtaken by completed",
			setup: []entity.JobUpdate{entity.ProcessingUpdate("")},
			write: entity.CompletedUpdate("processed/job-1_result.json", "", 1, ""),
			want:  constants.JobStatusCompleted,
		},
		{
			name:  "completed overtaken by failed",
			setup: []entity.JobUpdate{entity.CompletedUpdate("processed/job-1_result.json", "", 1, "")},
			write: entity.FailedUpdate("result rewrite failed"),
			want:  constants.JobStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestRepo(t)
			ctx := context.Background()
			if err := store.Create(ctx, newJob("job-1", "", time.Now())); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			for _, u := range tt.setup {
				if _, err := store.Update(ctx, "job-1", "", u); err != nil {
					t.Fatalf("setup Update() error = %v", err)
				}
			}

			cache := newFakeCache()
			worker := NewCachedJobRepository(store, cache, time.Minute, nil)
			slow := &interleavedRepo{JobRepository: store}
			api := NewCachedJobRepository(slow, cache, time.Minute, nil)
			slow.between = func() {
				if _, err := worker.Update(ctx, "job-1", "", tt.write); err != nil {
					t.Errorf("worker Update() error = %v", err)
				}
			}

			first, err := api.Get(ctx, "job-1", "")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			second, err := api.Get(ctx, "job-1", "")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if second.Status != tt.want {
				t.Errorf("status after worker write = %q (first read %q), want %q", second.Status, first.Status, tt.want)
			}
			if second.Status.Rank() < first.Status.Rank() {
				t.Errorf("status moved backward: %s -> %s", first.Status, second.Status)
			}
		})
	}
}

func TestCachedJobRepository_NotFoundIsNotCached(t *testing.T) {
	cache := newFakeCache()
	repo := NewCachedJobRepository(setupTestRepo(t), cache, time.Minute, nil)

	_, err := repo.Get(context.Background(), "nope", "")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if cache.sets != 0 {
		t.Errorf("sets = %d, want 0", cache.sets)
	}
}
