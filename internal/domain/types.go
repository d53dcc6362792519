package domain

import "errors"

// ErrInvalidDayWindow is returned when the coverage day window is inverted.
var ErrInvalidDayWindow = errors.New("dias_min must be less than dias_max")

// JobParameters is the request payload for one planning run.
// Field names follow the generate endpoint contract. Immutable once submitted.
type JobParameters struct {
	Months            int     `json:"meses"`
	Debug             bool    `json:"debug"`
	SaveIntermediates bool    `json:"save_intermediates"`
	MinDays           int     `json:"dias_min"`
	MaxDays           int     `json:"dias_max"`
	SafetyRatio       float64 `json:"safety_ratio"`
	AllowSeed         bool    `json:"allow_seed"`
}

// DefaultParameters returns the baseline request used by the CLI when
// flags are omitted.
func DefaultParameters() JobParameters {
	return JobParameters{
		Months:      2,
		MinDays:     7,
		MaxDays:     14,
		SafetyRatio: 0.3,
	}
}

// Validate enforces the cross-field day-window rule. Violating parameter
// sets must never reach the network layer.
func (p JobParameters) Validate() error {
	if p.MinDays >= p.MaxDays {
		return ErrInvalidDayWindow
	}
	return nil
}

// JobStatus is one status snapshot from the job service. A snapshot with
// Running=false is terminal: either OutputFiles is populated (success),
// Error is set (failure), or both are empty (no work produced).
type JobStatus struct {
	Running     bool     `json:"running"`
	Progress    int      `json:"progress"`
	Stage       string   `json:"stage"`
	Error       string   `json:"error"`
	OutputFiles []string `json:"output_files"`
}

// Terminal reports whether the snapshot ends the polling phase.
func (s JobStatus) Terminal() bool {
	return !s.Running
}

// State is the client-side lifecycle state, owned by the lifecycle
// state machine. Consumers observe emitted events, never the state itself.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether the lifecycle reached an end state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
