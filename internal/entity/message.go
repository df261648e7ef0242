package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QueueMessage is the job reference handed from submission to the worker.
type QueueMessage struct {
	JobID          string `json:"job_id"`
	Owner          string `json:"owner,omitempty"`
	SourceLocation string `json:"source_location"`
}

// MessageFor builds the queue message for a stored job.
func MessageFor(j *Job) QueueMessage {
	return QueueMessage{JobID: j.ID, Owner: j.Owner, SourceLocation: j.SourceLocation}
}

func (m QueueMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeQueueMessage parses a payload and rejects messages without a job id or source.
func DecodeQueueMessage(body []byte) (QueueMessage, error) {
	var m QueueMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return QueueMessage{}, fmt.Errorf("decode queue message: %w", err)
	}
	m.JobID = strings.TrimSpace(m.JobID)
	m.SourceLocation = strings.TrimSpace(m.SourceLocation)
	if m.JobID == "" || m.SourceLocation == "" {
		return QueueMessage{}, fmt.Errorf("queue message missing job_id or source_location")
	}
	return m, nil
}
