package domain

import "time"

// Processing states, in pipeline order. "processing" and "completed"
// are derived by the status query when no cache record exists; the
// pipeline itself only writes started/generating/saving/error.
const (
	StatusStarted    = "started"
	StatusGenerating = "generating"
	StatusSaving     = "saving"
	StatusError      = "error"
	StatusCompleted  = "completed"
	StatusProcessing = "processing"
)

// ProcessingStatus is the ephemeral progress record polled by clients.
// It is never authoritative: the preference store decides completion.
type ProcessingStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Error     string    `json:"error,omitempty"`
}
