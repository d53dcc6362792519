package domain

import "time"

// RunState is the final outcome recorded for a finished run.
type RunState string

const (
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// RunRecord is one finished planning run in the history store.
type RunRecord struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
	State       RunState      `json:"state"`
	Error       string        `json:"error,omitempty"`
	OutputFiles []string      `json:"outputFiles"`
	Parameters  JobParameters `json:"parameters"`
}
