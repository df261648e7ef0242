package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/network-extractor/internal/blob"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/jobs"
	"github.com/joseph-ayodele/network-extractor/internal/llm"
	"github.com/joseph-ayodele/network-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/network-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/network-extractor/internal/pipeline"
	"github.com/joseph-ayodele/network-extractor/internal/queue"
	"github.com/joseph-ayodele/network-extractor/internal/repository"
)

// deps holds the shared infrastructure every subcommand starts from.
type deps struct {
	cfg     *common.Config
	logger  *slog.Logger
	repo    repository.JobRepository
	blobs   blob.Store
	redis   *redis.Client
	ready   func(ctx context.Context) error
	closers []func()
}

func buildDeps(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{cfg: cfg, logger: logger}
	if err := d.openStore(ctx); err != nil {
		d.close()
		return nil, err
	}
	if err := d.openRedis(ctx); err != nil {
		d.close()
		return nil, err
	}
	if err := d.openBlobs(ctx); err != nil {
		d.close()
		return nil, err
	}
	return d, nil
}

func (d *deps) openStore(ctx context.Context) error {
	switch d.cfg.Store.Driver {
	case "postgres":
		pool, err := repository.Open(ctx, repository.Config{
			DSN:             d.cfg.Store.DSN,
			MaxConns:        d.cfg.Store.MaxConns,
			MinConns:        d.cfg.Store.MinConns,
			MaxConnLifetime: d.cfg.Store.MaxConnLifetime,
			MaxConnIdleTime: d.cfg.Store.MaxConnIdleTime,
			DialTimeout:     d.cfg.Store.DialTimeout,
		}, d.logger)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, func() { repository.Close(pool, d.logger) })
		if err := repository.HealthCheck(ctx, pool, 5*time.Second, d.logger); err != nil {
			return err
		}
		if err := repository.EnsurePostgresSchema(ctx, pool); err != nil {
			return err
		}
		d.repo = repository.NewPostgresJobRepository(pool, d.logger)
		d.ready = func(ctx context.Context) error {
			return repository.HealthCheck(ctx, pool, 2*time.Second, d.logger)
		}
	case "sqlite":
		repo, err := repository.NewSQLiteJobRepository(d.cfg.Store.SQLitePath, d.logger)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, func() { _ = repo.Close() })
		d.repo = repo
		d.ready = repo.Ping
	default:
		return fmt.Errorf("unknown store driver %q", d.cfg.Store.Driver)
	}
	return nil
}

// openRedis wraps the job store with the shared status cache when REDIS_ADDR is set.
func (d *deps) openRedis(ctx context.Context) error {
	if d.cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: d.cfg.Redis.Addr, DB: d.cfg.Redis.DB})
	d.closers = append(d.closers, func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	d.redis = client
	d.repo = repository.NewCachedJobRepository(d.repo, client, d.cfg.Redis.CacheTTL, d.logger)
	d.logger.Info("redis.connected", "addr", d.cfg.Redis.Addr)
	return nil
}

func (d *deps) openBlobs(ctx context.Context) error {
	store, err := blob.NewMinioStore(blob.MinioConfig{
		Endpoint:  d.cfg.Blob.Endpoint,
		Bucket:    d.cfg.Blob.Bucket,
		AccessKey: d.cfg.Blob.AccessKey,
		SecretKey: d.cfg.Blob.SecretKey,
		UseSSL:    d.cfg.Blob.UseSSL,
	}, d.logger)
	if err != nil {
		return err
	}
	if d.cfg.Blob.EnsureBucket {
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
	}
	d.blobs = store
	return nil
}

// close releases resources in reverse order of acquisition.
func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *deps) jobService(publisher queue.Publisher) *jobs.Service {
	return jobs.NewService(d.repo, d.blobs, publisher, nil, jobs.Config{
		MaxUploadBytes: d.cfg.Server.MaxUploadBytes,
		DownloadURLTTL: d.cfg.Blob.DownloadURLTTL,
		ReconcileAfter: d.cfg.Worker.ReconcileAfter,
		ReconcileLimit: d.cfg.Worker.ReconcileLimit,
		StaleAfter:     d.cfg.Worker.StaleAfter,
	}, d.logger)
}

func (d *deps) processor(engine llm.Engine) *pipeline.Processor {
	return pipeline.NewProcessor(d.repo, d.blobs, engine, pipeline.Config{
		WindowSize:       d.cfg.Worker.WindowSize,
		BatchConcurrency: d.cfg.Worker.BatchConcurrency,
		DedupeRecords:    d.cfg.Worker.DedupeRecords,
		DownloadURLTTL:   d.cfg.Blob.DownloadURLTTL,
		ProcessTimeout:   d.cfg.Worker.ProcessTimeout,
		StaleAfter:       d.cfg.Worker.StaleAfter,
	}, d.logger)
}

func (d *deps) rabbitConfig() queue.RabbitConfig {
	return queue.RabbitConfig{
		Exchange:   d.cfg.Queue.Exchange,
		RoutingKey: d.cfg.Queue.RoutingKey,
		Queue:      d.cfg.Queue.Queue,
	}
}

func (d *deps) dialRabbit() (*amqp.Connection, error) {
	conn, err := amqp.Dial(d.cfg.Queue.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	d.closers = append(d.closers, func() { _ = conn.Close() })
	return conn, nil
}

// newEngine builds the configured extraction engine client.
func newEngine(cfg common.EngineConfig, logger *slog.Logger) (llm.Engine, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewClient(gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q", cfg.Provider)
	}
}
