package job

import "github.com/SpicychieF05/StreamZip/id"

// Message is the minimal work descriptor carried by the broker from
// producer to worker. The broker persists messages independently of the
// job store; a message for an already-evicted job is acked and skipped.
type Message struct {
	JobID id.JobID `json:"job_id"`
	Type  Type     `json:"type"`
	URL   string   `json:"url"`
}
