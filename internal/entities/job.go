package entities

import (
	"errors"
	"time"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

type Job struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	SourceMimeType   string    `json:"source_mime_type"`
	TargetFormat     string    `json:"target_format"`
	Status           JobStatus `json:"status"`
	SourceKey        string    `json:"source_key"`
	ResultKey        *string   `json:"result_key,omitempty"`
	Error            *string   `json:"error,omitempty"`
	Attempts         int16     `json:"attempts"`
	CreatedTimestamp time.Time `json:"created_timestamp"`
	UpdatedTimestamp time.Time `json:"updated_timestamp"`
}

var ErrJobNotFound = errors.New("job not found")
