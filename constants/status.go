package constants

// JobStatus is the canonical status for rows in the job store.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "pending"    // submitted, waiting on the queue
	JobStatusProcessing JobStatus = "processing" // a worker picked it up
	JobStatusCompleted  JobStatus = "completed"  // terminal: result published
	JobStatusFailed     JobStatus = "failed"     // terminal: error_detail set
)

// Rank orders statuses along the state machine. Both terminal states share a rank.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool { return s.Rank() >= 0 }

// Terminal reports whether no further work happens for the job.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Status never moves backward; terminal-to-terminal rewrites are last-write-wins.
func CanTransition(from, to JobStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == JobStatusPending {
		return from == JobStatusPending
	}
	return to.Rank() >= from.Rank()
}
