package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

// JobRepository is the durable job store shared by the API and the worker.
// Every lookup is scoped by owner; the empty owner is the single-tenant namespace.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Get(ctx context.Context, jobID, owner string) (*entity.Job, error)
	// Update merges u into the stored job. A status that would move backward
	// returns common.ErrInvalidTransition and leaves the row untouched.
	Update(ctx context.Context, jobID, owner string, u entity.JobUpdate) (*entity.Job, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]entity.Job, error)
	// ListStale returns jobs in status not touched since before, oldest first.
	ListStale(ctx context.Context, status constants.JobStatus, before time.Time, limit int) ([]entity.Job, error)
}

const jobColumns = `job_id, owner, source_location, original_filename, content_type, status,
	progress_note, result_location, download_handle, error_detail, record_count, created_at, updated_at`

// statusRankSQL mirrors constants.JobStatus.Rank for use in update guards.
const statusRankSQL = `CASE status WHEN 'pending' THEN 0 WHEN 'processing' THEN 1 ELSE 2 END`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*entity.Job, error) {
	var job entity.Job
	var status string
	err := row.Scan(
		&job.ID, &job.Owner, &job.SourceLocation, &job.OriginalFilename, &job.ContentType, &status,
		&job.ProgressNote, &job.ResultLocation, &job.DownloadHandle, &job.ErrorDetail, &job.RecordCount,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = constants.JobStatus(status)
	return &job, nil
}

// updateArgs flattens a JobUpdate into nullable column values plus the rank of
// the requested status (-1 when the update leaves status alone).
type updateArgs struct {
	status         *string
	progressNote   *string
	resultLocation *string
	downloadHandle *string
	errorDetail    *string
	recordCount    *int
	newRank        int
}

func toUpdateArgs(u entity.JobUpdate) (updateArgs, error) {
	a := updateArgs{
		progressNote:   u.ProgressNote,
		resultLocation: u.ResultLocation,
		downloadHandle: u.DownloadHandle,
		errorDetail:    u.ErrorDetail,
		recordCount:    u.RecordCount,
		newRank:        -1,
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return a, fmt.Errorf("unknown job status %q", *u.Status)
		}
		s := string(*u.Status)
		a.status = &s
		a.newRank = u.Status.Rank()
	}
	return a, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
