package entity

import (
	"time"

	"github.com/joseph-ayodele/network-extractor/constants"
)

// Job is one extraction request as stored in the job store.
type Job struct {
	ID               string              `json:"job_id"`
	Owner            string              `json:"owner,omitempty"`
	SourceLocation   string              `json:"source_location"`
	OriginalFilename string              `json:"original_filename"`
	ContentType      string              `json:"content_type,omitempty"`
	Status           constants.JobStatus `json:"status"`
	ProgressNote     string              `json:"progress_note,omitempty"`
	ResultLocation   string              `json:"result_location,omitempty"`
	DownloadHandle   string              `json:"download_url,omitempty"`
	ErrorDetail      string              `json:"error,omitempty"`
	RecordCount      int                 `json:"record_count,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// JobUpdate is a partial merge. Nil fields keep their stored value.
type JobUpdate struct {
	Status         *constants.JobStatus
	ProgressNote   *string
	ResultLocation *string
	DownloadHandle *string
	ErrorDetail    *string
	RecordCount    *int
}

// ProcessingUpdate moves a job into processing.
func ProcessingUpdate(note string) JobUpdate {
	s := constants.JobStatusProcessing
	return JobUpdate{Status: &s, ProgressNote: &note}
}

// ProgressUpdate only overwrites the progress note.
func ProgressUpdate(note string) JobUpdate {
	return JobUpdate{ProgressNote: &note}
}

// CompletedUpdate publishes the result and clears any earlier error text.
func CompletedUpdate(resultLocation, downloadHandle string, records int, note string) JobUpdate {
	s := constants.JobStatusCompleted
	empty := ""
	return JobUpdate{
		Status:         &s,
		ProgressNote:   &note,
		ResultLocation: &resultLocation,
		DownloadHandle: &downloadHandle,
		ErrorDetail:    &empty,
		RecordCount:    &records,
	}
}

// FailedUpdate records detail and clears result references.
func FailedUpdate(detail string) JobUpdate {
	s := constants.JobStatusFailed
	empty := ""
	zero := 0
	return JobUpdate{
		Status:         &s,
		ErrorDetail:    &detail,
		ResultLocation: &empty,
		DownloadHandle: &empty,
		RecordCount:    &zero,
	}
}

// Apply merges u into a copy of j. It does not enforce transitions.
func (j Job) Apply(u JobUpdate, now time.Time) Job {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.ProgressNote != nil {
		j.ProgressNote = *u.ProgressNote
	}
	if u.ResultLocation != nil {
		j.ResultLocation = *u.ResultLocation
	}
	if u.DownloadHandle != nil {
		j.DownloadHandle = *u.DownloadHandle
	}
	if u.ErrorDetail != nil {
		j.ErrorDetail = *u.ErrorDetail
	}
	if u.RecordCount != nil {
		j.RecordCount = *u.RecordCount
	}
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
	return j
}
