package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/blob"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
	"github.com/joseph-ayodele/network-extractor/internal/llm"
	"github.com/joseph-ayodele/network-extractor/internal/repository"
	"github.com/joseph-ayodele/network-extractor/internal/tabular"
)

// Config holds worker behaviour knobs.
type Config struct {
	WindowSize       int
	BatchConcurrency int
	DedupeRecords    bool
	DownloadURLTTL   time.Duration
	ProcessTimeout   time.Duration
	// StaleAfter is how long a processing job may go untouched before a
	// redelivered message may take it over.
	StaleAfter time.Duration
}

const (
	maxErrorDetail    = 500
	finalUpdateBudget = 10 * time.Second
)

// Processor turns one queued job reference into a published result or a
// recorded failure.
type Processor struct {
	repo        repository.JobRepository
	blobs       blob.Store
	engine      llm.Engine
	batches     *tabular.Extractor
	instruction string
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time
}

func NewProcessor(repo repository.JobRepository, blobs blob.Store, engine llm.Engine, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DownloadURLTTL <= 0 {
		cfg.DownloadURLTTL = 7 * 24 * time.Hour
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = constants.DefaultStaleAfter
	}
	return &Processor{
		repo:   repo,
		blobs:  blobs,
		engine: engine,
		batches: tabular.NewExtractor(engine, logger,
			tabular.WithWindowSize(cfg.WindowSize),
			tabular.WithConcurrency(cfg.BatchConcurrency),
		),
		instruction: llm.BuildInstruction(constants.ProviderTypes()),
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Handle processes msg. It is safe to call again for the same job: a job that
// already reached a terminal status is left untouched, and so is a processing
// job written to within StaleAfter, since its worker is still alive. The
// returned error is informational; the job row already records the outcome.
func (p *Processor) Handle(ctx context.Context, msg entity.QueueMessage) error {
	logger := p.logger.With("job_id", msg.JobID)

	job, err := p.repo.Get(ctx, msg.JobID, msg.Owner)
	if err != nil {
		logger.Error("worker.job.lookup_failed", "error", err)
		return err
	}
	if !constants.CanTransition(job.Status, constants.JobStatusProcessing) {
		logger.Info("worker.job.skipped", "status", job.Status)
		return nil
	}
	if job.Status == constants.JobStatusProcessing {
		idle := p.now().Sub(job.UpdatedAt)
		if idle < p.cfg.StaleAfter {
			logger.Info("worker.job.skipped", "status", job.Status, "reason", "in progress", "idle_ms", idle.Milliseconds())
			return nil
		}
		logger.Warn("worker.job.taking_over", "idle_ms", idle.Milliseconds())
	}
	if msg.SourceLocation != job.SourceLocation {
		logger.Warn("worker.job.source_mismatch", "message_source", msg.SourceLocation, "job_source", job.SourceLocation)
	}

	if p.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ProcessTimeout)
		defer cancel()
	}

	start := time.Now()
	if _, err := p.repo.Update(ctx, job.ID, job.Owner, entity.ProcessingUpdate("processing started")); err != nil {
		if errors.Is(err, common.ErrInvalidTransition) {
			logger.Info("worker.job.skipped", "reason", "finished concurrently")
			return nil
		}
		logger.Error("worker.job.start_failed", "error", err)
		return err
	}

	records, note, err := p.extract(ctx, job)
	if err == nil {
		err = p.publish(ctx, job, records, note)
	}
	if err != nil {
		p.fail(ctx, job, err)
		logger.Error("worker.job.failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}

	logger.Info("worker.job.completed", "records", len(records), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *Processor) extract(ctx context.Context, job *entity.Job) ([]entity.Record, string, error) {
	exists, err := p.blobs.Exists(ctx, job.SourceLocation)
	if err != nil {
		return nil, "", err
	}
	if !exists {
		return nil, "", common.NotFoundError("source file " + job.SourceLocation + " not found")
	}

	contentType := p.sourceContentType(ctx, job)
	data, err := p.blobs.Download(ctx, job.SourceLocation)
	if err != nil {
		return nil, "", err
	}

	var records []entity.Record
	var note string
	switch {
	case constants.IsTabular(contentType):
		records, note, err = p.extractTabular(ctx, job, data, contentType)
	case constants.IsWordDocument(contentType):
		records, note, err = p.extractWordDocument(ctx, job, data)
	default:
		records, note, err = p.extractDocument(ctx, job, data, contentType)
	}
	if err != nil {
		return nil, "", err
	}

	if p.cfg.DedupeRecords {
		before := len(records)
		records = entity.DedupeRecords(records)
		if removed := before - len(records); removed > 0 {
			p.logger.Info("worker.records.deduped", "job_id", job.ID, "removed", removed)
		}
	}
	if len(records) == 0 {
		return nil, "", common.NewAppError("EMPTY_RESULT", "no provider records were found in the file", common.ErrEmptyResult)
	}
	return records, note, nil
}

// sourceContentType prefers the type stored with the blob and falls back to
// what was recorded at submission.
func (p *Processor) sourceContentType(ctx context.Context, job *entity.Job) string {
	stored, err := p.blobs.ContentType(ctx, job.SourceLocation)
	if err != nil {
		p.logger.Warn("worker.source.content_type_unavailable", "job_id", job.ID, "error", err)
	}
	ct := constants.ResolveContentType(stored, job.OriginalFilename)
	if ct == constants.MIMEOctetStream && job.ContentType != "" {
		ct = constants.NormalizeMIME(job.ContentType)
	}
	return ct
}

func (p *Processor) publish(ctx context.Context, job *entity.Job, records []entity.Record, note string) error {
	body, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return common.WrapError(err, "encode result")
	}

	key := blob.ResultKey(job.Owner, job.ID)
	if err := p.blobs.Upload(ctx, key, body, constants.MIMEJSON); err != nil {
		return err
	}

	url, err := p.blobs.PresignedURL(ctx, key, p.cfg.DownloadURLTTL, blob.ResultFilename(job.OriginalFilename, "json"))
	if err != nil {
		// Status reads mint a link when none is stored.
		p.logger.Warn("worker.result.presign_failed", "job_id", job.ID, "error", err)
		url = ""
	}

	_, err = p.repo.Update(ctx, job.ID, job.Owner, entity.CompletedUpdate(key, url, len(records), note))
	return err
}

func (p *Processor) fail(ctx context.Context, job *entity.Job, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalUpdateBudget)
	defer cancel()

	if _, err := p.repo.Update(ctx, job.ID, job.Owner, entity.FailedUpdate(failureDetail(cause))); err != nil {
		p.logger.Error("worker.job.fail_update_failed", "job_id", job.ID, "error", err)
	}
}

// failureDetail is the error text stored on the job and shown to its owner.
func failureDetail(err error) string {
	var appErr *common.AppError
	var detail string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		detail = "processing timed out"
	case errors.Is(err, common.ErrStorage):
		detail = common.PublicMessage(err)
	case errors.As(err, &appErr):
		detail = appErr.Message
	default:
		detail = err.Error()
	}
	return common.Truncate(detail, maxErrorDetail)
}

func progressNote(done, total int) string {
	return fmt.Sprintf("batch %d/%d", done, total)
}
