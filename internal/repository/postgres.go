package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS extract_jobs (
    job_id            TEXT PRIMARY KEY,
    owner             TEXT NOT NULL DEFAULT '',
    source_location   TEXT NOT NULL,
    original_filename TEXT NOT NULL DEFAULT '',
    content_type      TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'pending',
    progress_note     TEXT NOT NULL DEFAULT '',
    result_location   TEXT NOT NULL DEFAULT '',
    download_handle   TEXT NOT NULL DEFAULT '',
    error_detail      TEXT NOT NULL DEFAULT '',
    record_count      INTEGER NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_extract_jobs_owner_created ON extract_jobs (owner, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_extract_jobs_status_updated ON extract_jobs (status, updated_at);
`

type postgresJobRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresJobRepository returns a JobRepository backed by pgx.
func NewPostgresJobRepository(pool *pgxpool.Pool, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &postgresJobRepo{pool: pool, log: log}
}

// EnsurePostgresSchema creates the jobs table when it is missing.
func EnsurePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return common.StorageError("create schema", err)
	}
	return nil
}

func (r *postgresJobRepo) Create(ctx context.Context, job *entity.Job) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO extract_jobs (job_id, owner, source_location, original_filename, content_type, status, progress_note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Owner, job.SourceLocation, job.OriginalFilename, job.ContentType, string(job.Status),
		job.ProgressNote, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		r.log.Error("job.create failed", "job_id", job.ID, "err", err)
		return common.StorageError("create job", err)
	}
	r.log.Info("job.created", "job_id", job.ID, "owner", job.Owner, "source", job.SourceLocation)
	return nil
}

func (r *postgresJobRepo) Get(ctx context.Context, jobID, owner string) (*entity.Job, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM extract_jobs WHERE job_id = $1 AND owner = $2`, jobID, owner)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError("job " + jobID + " not found")
	}
	if err != nil {
		r.log.Error("job.get failed", "job_id", jobID, "err", err)
		return nil, common.StorageError("get job", err)
	}
	return job, nil
}

func (r *postgresJobRepo) Update(ctx context.Context, jobID, owner string, u entity.JobUpdate) (*entity.Job, error) {
	a, err := toUpdateArgs(u)
	if err != nil {
		return nil, common.NewAppError("INVALID_TRANSITION", err.Error(), common.ErrInvalidTransition)
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE extract_jobs SET
		    status          = COALESCE($3, status),
		    progress_note   = COALESCE($4, progress_note),
		    result_location = COALESCE($5, result_location),
		    download_handle = COALESCE($6, download_handle),
		    error_detail    = COALESCE($7, error_detail),
		    record_count    = COALESCE($8, record_count),
		    updated_at      = GREATEST(updated_at, $9)
		 WHERE job_id = $1 AND owner = $2 AND ($10 < 0 OR `+statusRankSQL+` <= $10)
		 RETURNING `+jobColumns,
		jobID, owner, a.status, a.progressNote, a.resultLocation, a.downloadHandle, a.errorDetail,
		a.recordCount, time.Now().UTC(), a.newRank,
	)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the job is missing or the guard rejected a backward move.
		current, getErr := r.Get(ctx, jobID, owner)
		if getErr != nil {
			return nil, getErr
		}
		if a.status == nil {
			return current, nil
		}
		r.log.Warn("job.update rejected", "job_id", jobID, "from", current.Status, "to", *a.status)
		return nil, common.NewAppError("INVALID_TRANSITION",
			"job "+jobID+" cannot move from "+string(current.Status)+" to "+*a.status, common.ErrInvalidTransition)
	}
	if err != nil {
		r.log.Error("job.update failed", "job_id", jobID, "err", err)
		return nil, common.StorageError("update job", err)
	}
	r.log.Debug("job.updated", "job_id", jobID, "status", job.Status)
	return job, nil
}

func (r *postgresJobRepo) ListByOwner(ctx context.Context, owner string, limit int) ([]entity.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM extract_jobs WHERE owner = $1 ORDER BY created_at DESC, job_id LIMIT $2`,
		owner, normalizeLimit(limit))
	if err != nil {
		return nil, common.StorageError("list jobs", err)
	}
	return collectJobs(rows)
}

func (r *postgresJobRepo) ListStale(ctx context.Context, status constants.JobStatus, before time.Time, limit int) ([]entity.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM extract_jobs WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3`,
		string(status), before.UTC(), normalizeLimit(limit))
	if err != nil {
		return nil, common.StorageError("list stale jobs", err)
	}
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]entity.Job, error) {
	defer rows.Close()
	var jobs []entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, common.StorageError("scan job", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageError("iterate jobs", err)
	}
	return jobs, nil
}
