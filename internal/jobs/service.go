package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/blob"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
	"github.com/joseph-ayodele/network-extractor/internal/export"
	"github.com/joseph-ayodele/network-extractor/internal/queue"
	"github.com/joseph-ayodele/network-extractor/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	maxFilenameLen = 255
)

type Config struct {
	MaxUploadBytes   int64
	DownloadURLTTL   time.Duration
	PublishAttempts  int
	PublishBaseDelay time.Duration
	PublishMaxDelay  time.Duration
	ReconcileAfter   time.Duration
	ReconcileLimit   int
	// StaleAfter is how long a processing job may go untouched before its
	// worker is presumed dead. It must match the worker's setting.
	StaleAfter time.Duration
}

func (c *Config) withDefaults() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = constants.DefaultMaxUploadBytes
	}
	if c.DownloadURLTTL <= 0 {
		c.DownloadURLTTL = 7 * 24 * time.Hour
	}
	if c.PublishAttempts <= 0 {
		c.PublishAttempts = 5
	}
	if c.PublishBaseDelay <= 0 {
		c.PublishBaseDelay = 500 * time.Millisecond
	}
	if c.PublishMaxDelay <= 0 {
		c.PublishMaxDelay = 10 * time.Second
	}
	if c.ReconcileAfter <= 0 {
		c.ReconcileAfter = 15 * time.Minute
	}
	if c.ReconcileLimit <= 0 {
		c.ReconcileLimit = 100
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = constants.DefaultStaleAfter
	}
}

// Submission is one uploaded file awaiting a job.
type Submission struct {
	Data        []byte
	Filename    string
	ContentType string
	Owner       string
}

// Result is a downloadable rendering of a completed job's records.
type Result struct {
	Body        []byte
	ContentType string
	Filename    string
}

// Service implements submission, status and retrieval. It never waits on the
// extraction engine; the worker owns every status change after creation.
type Service struct {
	repo      repository.JobRepository
	blobs     blob.Store
	publisher queue.Publisher
	exporter  *export.Service
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo repository.JobRepository, blobs blob.Store, publisher queue.Publisher, exporter *export.Service, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = export.NewService(logger)
	}
	cfg.withDefaults()
	return &Service{
		repo:      repo,
		blobs:     blobs,
		publisher: publisher,
		exporter:  exporter,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit stores the file, records a pending job and enqueues it. A publish
// failure after the job exists is logged and left to Reconcile; the caller
// still receives the job.
func (s *Service) Submit(ctx context.Context, sub Submission) (*entity.Job, error) {
	sub.Filename = strings.TrimSpace(sub.Filename)
	v := common.NewValidator().
		Field("file", sub.Data, common.Required, common.MaxBytes(s.cfg.MaxUploadBytes)).
		Field("filename", sub.Filename, common.Required, common.MaxLength(maxFilenameLen), common.AllowedExtension)
	if err := v.Err(); err != nil {
		s.logger.Info("jobs.submit.rejected", "owner", sub.Owner, "reason", v.ErrorMessage())
		return nil, err
	}

	contentType := constants.ResolveContentType(sub.ContentType, sub.Filename)
	key := blob.SourceKey(sub.Owner, sub.Filename)
	if err := s.blobs.Upload(ctx, key, sub.Data, contentType); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	job := &entity.Job{
		ID:               uuid.NewString(),
		Owner:            sub.Owner,
		SourceLocation:   key,
		OriginalFilename: sub.Filename,
		ContentType:      contentType,
		Status:           constants.JobStatusPending,
		ProgressNote:     "queued",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		s.logger.Error("jobs.submit.store_failed", "source", key, "error", err)
		return nil, err
	}

	if err := s.publishWithRetry(ctx, entity.MessageFor(job)); err != nil {
		s.logger.Error("jobs.submit.publish_failed",
			"job_id", job.ID, "error", err, "hint", "job stays pending until reconcile republishes it")
	}

	s.logger.Info("jobs.submitted",
		"job_id", job.ID,
		"owner", job.Owner,
		"content_type", contentType,
		"bytes", len(sub.Data),
	)
	return job, nil
}

// GetStatus returns the job. A completed job whose stored link is past half
// its lifetime is returned with a freshly signed one; the row is not rewritten.
func (s *Service) GetStatus(ctx context.Context, jobID, owner string) (*entity.Job, error) {
	job, err := s.lookup(ctx, jobID, owner)
	if err != nil {
		return nil, err
	}
	if job.Status != constants.JobStatusCompleted || !s.handleExpired(job) {
		return job, nil
	}

	url, err := s.presign(ctx, job)
	if err != nil {
		s.logger.Warn("jobs.status.presign_failed", "job_id", jobID, "error", err)
		return job, nil
	}
	job.DownloadHandle = url
	return job, nil
}

func (s *Service) handleExpired(job *entity.Job) bool {
	return job.DownloadHandle == "" || s.now().After(job.UpdatedAt.Add(s.cfg.DownloadURLTTL/2))
}

// ListJobs returns the owner's jobs newest first.
func (s *Service) ListJobs(ctx context.Context, owner string, limit int) ([]entity.Job, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	jobs, err := s.repo.ListByOwner(ctx, owner, limit)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []entity.Job{}
	}
	return jobs, nil
}

// GetDownload issues a fresh time-limited link to a completed job's result.
func (s *Service) GetDownload(ctx context.Context, jobID, owner string) (string, error) {
	job, err := s.completedJob(ctx, jobID, owner)
	if err != nil {
		return "", err
	}
	return s.presign(ctx, job)
}

// GetResult loads the result blob and renders it as JSON or XLSX.
func (s *Service) GetResult(ctx context.Context, jobID, owner, format string) (*Result, error) {
	job, err := s.completedJob(ctx, jobID, owner)
	if err != nil {
		return nil, err
	}
	body, err := s.blobs.Download(ctx, job.ResultLocation)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "", "json":
		return &Result{
			Body:        body,
			ContentType: constants.MIMEJSON,
			Filename:    blob.ResultFilename(job.OriginalFilename, "json"),
		}, nil
	case "xlsx":
		var records []entity.Record
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, common.WrapError(err, "decode result "+job.ResultLocation)
		}
		xlsx, err := s.exporter.RecordsXLSX(job.ID, records)
		if err != nil {
			return nil, err
		}
		return &Result{
			Body:        xlsx,
			ContentType: constants.MIMEXLSX,
			Filename:    blob.ResultFilename(job.OriginalFilename, "xlsx"),
		}, nil
	default:
		return nil, common.ValidationError("format must be json or xlsx")
	}
}

// lookup loads a job for its owner. Ids this service could not have issued
// are reported as not found without a store round trip.
func (s *Service) lookup(ctx context.Context, jobID, owner string) (*entity.Job, error) {
	if common.NewValidator().Field("job_id", jobID, common.UUID).HasErrors() {
		return nil, common.NotFoundError("job " + jobID + " not found")
	}
	return s.repo.Get(ctx, jobID, owner)
}

func (s *Service) completedJob(ctx context.Context, jobID, owner string) (*entity.Job, error) {
	job, err := s.lookup(ctx, jobID, owner)
	if err != nil {
		return nil, err
	}
	if job.Status != constants.JobStatusCompleted || job.ResultLocation == "" {
		return nil, common.NotFoundError("job " + jobID + " has no result (status " + string(job.Status) + ")")
	}
	return job, nil
}

func (s *Service) presign(ctx context.Context, job *entity.Job) (string, error) {
	return s.blobs.PresignedURL(ctx, job.ResultLocation, s.cfg.DownloadURLTTL, blob.ResultFilename(job.OriginalFilename, "json"))
}
