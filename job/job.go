package job

import (
	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/id"
)

// Type identifies what kind of media a job retrieves.
type Type string

const (
	// TypeVideo retrieves the full video stream.
	TypeVideo Type = "video"
	// TypeAudio retrieves the audio track only.
	TypeAudio Type = "audio"
)

// ParseType validates a job type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeVideo, TypeAudio:
		return Type(s), nil
	default:
		return "", streamzip.ErrInvalidJobType
	}
}

// Ext returns the output file extension for the type, including the dot.
func (t Type) Ext() string {
	if t == TypeAudio {
		return ".m4a"
	}
	return ".mp4"
}

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusQueued means the job is waiting to be picked up by a worker.
	StatusQueued Status = "queued"
	// StatusProcessing means a worker is currently executing the job.
	StatusProcessing Status = "processing"
	// StatusCompleted means the retrieval finished and the artifact is on disk.
	StatusCompleted Status = "completed"
	// StatusFailed means the retrieval failed and will not be retried in place.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents the persisted state of one retrieval request.
//
// OutputPath and Filename are set only on the transition to completed;
// Error is set only on the transition to failed. The store exclusively
// owns Job records. The worker mutates them through Store.UpdateJob and
// holds no private copy beyond the in-flight snapshot it is transitioning.
type Job struct {
	streamzip.Entity

	ID         id.JobID `json:"id"`
	Type       Type     `json:"type"`
	Status     Status   `json:"status"`
	Progress   int      `json:"progress"`
	URL        string   `json:"url"`
	OutputPath string   `json:"output_path,omitempty"`
	Filename   string   `json:"filename,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// New creates a queued Job for the given type and source URL with a fresh
// identifier.
func New(t Type, url string) *Job {
	return &Job{
		Entity: streamzip.NewEntity(),
		ID:     id.NewJobID(),
		Type:   t,
		Status: StatusQueued,
		URL:    url,
	}
}
