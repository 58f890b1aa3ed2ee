package model

import "time"

type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusHalted    BatchStatus = "halted"
	BatchStatusError     BatchStatus = "error"
)

// BatchItem is one (group, code) unit of work inside a batch.
type BatchItem struct {
	GroupID string
	Code    string
}

// RetryCycleState tracks a parked retryable attempt inside a running batch.
// Destroyed once the attempt reaches a terminal outcome or the batch ends.
type RetryCycleState struct {
	AccountID      string
	Code           string
	Attempts       int
	NextEligibleAt time.Time
}

// ProgressSnapshot is the consolidated progress pushed to an observer.
// Recomputed on every state change; emission is rate limited by the caller.
type ProgressSnapshot struct {
	BatchID         string          `json:"batch_id"`
	Status          BatchStatus     `json:"status"`
	Total           int             `json:"total"`
	Success         int             `json:"success"`
	AlreadyRedeemed int             `json:"already_redeemed"`
	Retrying        int             `json:"retrying"`
	Failed          int             `json:"failed"`
	NotAttempted    int             `json:"not_attempted"`
	Processed       int             `json:"processed"`
	Failures        map[Outcome]int `json:"failures,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to an observer.
func (s ProgressSnapshot) Clone() ProgressSnapshot {
	cp := s
	cp.Failures = make(map[Outcome]int, len(s.Failures))
	for k, v := range s.Failures {
		cp.Failures[k] = v
	}
	return cp
}
