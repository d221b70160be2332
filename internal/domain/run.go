package domain

import "time"

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// RunResult is the outcome of one run attempt. It is never persisted.
type RunResult struct {
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	Message   string    `json:"message,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`
	PublishID string    `json:"youtubeVideoId,omitempty"`
	Trigger   Trigger   `json:"trigger,omitempty"`
}

// FailedRun builds the result reported for a failed run.
func FailedRun(trigger Trigger, err error) *RunResult {
	return &RunResult{
		Success: false,
		Reason:  ReasonOf(err),
		Message: err.Error(),
		Trigger: trigger,
	}
}

// Status is the read-only dashboard snapshot.
type Status struct {
	Config            AgentConfig `json:"config"`
	NextRun           *time.Time  `json:"nextRunISO"`
	Connected         bool        `json:"connected"`
	AccountEmail      *string     `json:"googleProfileEmail"`
	ReconnectRequired bool        `json:"reconnectRequired"`
	LastUploadID      *string     `json:"lastUploadedVideoId"`
	LastUploadAt      *time.Time  `json:"lastUploadAt"`
	PendingCount      int         `json:"pendingCount"`
}

// RunEvent is emitted to the event feed after every run attempt.
type RunEvent struct {
	Trigger    Trigger       `json:"trigger"`
	Success    bool          `json:"success"`
	Reason     string        `json:"reason,omitempty"`
	PublishID  string        `json:"publish_id,omitempty"`
	Title      string        `json:"title,omitempty"`
	SourceItem string        `json:"source_item,omitempty"`
	Duration   time.Duration `json:"duration"`
}
