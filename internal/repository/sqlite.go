package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

const sqliteSchema = `
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
    created_at        DATETIME NOT NULL,
    updated_at        DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extract_jobs_owner_created ON extract_jobs(owner, created_at);
CREATE INDEX IF NOT EXISTS idx_extract_jobs_status_updated ON extract_jobs(status, updated_at);
`

// SQLiteJobRepository implements JobRepository on a local SQLite file.
type SQLiteJobRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLiteJobRepository opens dbPath, creating the directory and schema if needed.
func NewSQLiteJobRepository(dbPath string, log *slog.Logger) (*SQLiteJobRepository, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, common.StorageError("create sqlite dir", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, common.StorageError("open sqlite", err)
	}
	// One writer at a time; the API and worker share this handle in standalone mode.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, common.StorageError("create schema", err)
	}
	log.Info("sqlite job store ready", "path", dbPath)
	return &SQLiteJobRepository{db: db, log: log}, nil
}

// Close closes the database connection.
func (r *SQLiteJobRepository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *SQLiteJobRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteJobRepository) Create(ctx context.Context, job *entity.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extract_jobs (job_id, owner, source_location, original_filename, content_type, status, progress_note, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Owner, job.SourceLocation, job.OriginalFilename, job.ContentType, string(job.Status),
		job.ProgressNote, job.CreatedAt.UTC(), job.UpdatedAt.UTC(),
	)
	if err != nil {
		r.log.Error("job.create failed", "job_id", job.ID, "err", err)
		return common.StorageError("create job", err)
	}
	r.log.Info("job.created", "job_id", job.ID, "owner", job.Owner, "source", job.SourceLocation)
	return nil
}

func (r *SQLiteJobRepository) Get(ctx context.Context, jobID, owner string) (*entity.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM extract_jobs WHERE job_id = ? AND owner = ?`, jobID, owner)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("job " + jobID + " not found")
	}
	if err != nil {
		return nil, common.StorageError("get job", err)
	}
	return job, nil
}

func (r *SQLiteJobRepository) Update(ctx context.Context, jobID, owner string, u entity.JobUpdate) (*entity.Job, error) {
	a, err := toUpdateArgs(u)
	if err != nil {
		return nil, common.NewAppError("INVALID_TRANSITION", err.Error(), common.ErrInvalidTransition)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE extract_jobs SET
		    status          = COALESCE(?, status),
		    progress_note   = COALESCE(?, progress_note),
		    result_location = COALESCE(?, result_location),
		    download_handle = COALESCE(?, download_handle),
		    error_detail    = COALESCE(?, error_detail),
		    record_count    = COALESCE(?, record_count),
		    updated_at      = MAX(updated_at, ?)
		 WHERE job_id = ? AND owner = ? AND (? < 0 OR `+statusRankSQL+` <= ?)`,
		a.status, a.progressNote, a.resultLocation, a.downloadHandle, a.errorDetail, a.recordCount,
		time.Now().UTC(), jobID, owner, a.newRank, a.newRank,
	)
	if err != nil {
		r.log.Error("job.update failed", "job_id", jobID, "err", err)
		return nil, common.StorageError("update job", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, common.StorageError("update job", err)
	}

	current, err := r.Get(ctx, jobID, owner)
	if err != nil {
		return nil, err
	}
	if affected == 0 && a.status != nil {
		r.log.Warn("job.update rejected", "job_id", jobID, "from", current.Status, "to", *a.status)
		return nil, common.NewAppError("INVALID_TRANSITION",
			"job "+jobID+" cannot move from "+string(current.Status)+" to "+*a.status, common.ErrInvalidTransition)
	}
	return current, nil
}

func (r *SQLiteJobRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]entity.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM extract_jobs WHERE owner = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		owner, normalizeLimit(limit))
	if err != nil {
		return nil, common.StorageError("list jobs", err)
	}
	return collectSQLRows(rows)
}

func (r *SQLiteJobRepository) ListStale(ctx context.Context, status constants.JobStatus, before time.Time, limit int) ([]entity.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM extract_jobs WHERE status = ? AND updated_at < ? ORDER BY updated_at ASC LIMIT ?`,
		string(status), before.UTC(), normalizeLimit(limit))
	if err != nil {
		return nil, common.StorageError("list stale jobs", err)
	}
	return collectSQLRows(rows)
}

func collectSQLRows(rows *sql.Rows) ([]entity.Job, error) {
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
