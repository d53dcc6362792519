// Package lifecycle drives a run from submission through polling to a
// terminal state.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"transfer-planner/internal/client"
	"transfer-planner/internal/domain"
)

// PollInterval is the fixed cadence of status polls.
const PollInterval = time.Second

// ErrRunInProgress is returned when submitting while a run is active.
var ErrRunInProgress = errors.New("run already in progress")

// ErrRunFinished is returned when submitting from a terminal state
// before the controller has been reset.
var ErrRunFinished = errors.New("previous run must be reset before submitting")

// Backend is the remote job service the controller talks to.
type Backend interface {
	Submit(ctx context.Context, params domain.JobParameters) error
	Poll(ctx context.Context) (domain.JobStatus, error)
	Reset(ctx context.Context) error
}

// Scheduler fires the poll tick at a fixed interval. The tick reports
// whether the loop should keep going, so a terminal tick can end its
// own loop without a blocking Stop from inside the timer goroutine.
type Scheduler interface {
	Start(tick func() bool) error
	Stop()
}

// Controller tracks the single allowed active run and its transitions.
// Stale in-flight responses after a reset are discarded by comparing
// the generation captured at dispatch time against the current one.
type Controller struct {
	backend Backend
	sched   Scheduler
	bus     *EventBus
	log     *slog.Logger

	mu         sync.RWMutex
	state      domain.State
	generation uint64
	lastStatus domain.JobStatus
}

// NewController creates an idle controller.
func NewController(backend Backend, sched Scheduler, bus *EventBus, log *slog.Logger) *Controller {
	return &Controller{
		backend: backend,
		sched:   sched,
		bus:     bus,
		log:     log,
		state:   domain.StateIdle,
	}
}

// Submit validates params, starts a run on the backend and begins
// polling. Invalid params never reach the network. Submit is only
// accepted from the idle state: a second submit while a run is active
// returns ErrRunInProgress, and a submit after a terminal state
// returns ErrRunFinished until Reset brings the controller back to
// idle.
func (c *Controller) Submit(ctx context.Context, params domain.JobParameters) error {
	if err := params.Validate(); err != nil {
		c.bus.Publish(Event{Type: EventTypeValidationFailed, Message: err.Error()})
		return err
	}

	c.mu.Lock()
	switch c.state {
	case domain.StateSubmitting, domain.StatePolling:
		c.mu.Unlock()
		return ErrRunInProgress
	case domain.StateCompleted, domain.StateFailed:
		c.mu.Unlock()
		return ErrRunFinished
	}
	c.generation++
	gen := c.generation
	c.state = domain.StateSubmitting
	c.lastStatus = domain.JobStatus{}
	c.mu.Unlock()

	c.bus.Publish(Event{Type: EventTypeSubmitted})

	err := c.backend.Submit(ctx, params)

	c.mu.Lock()
	if gen != c.generation {
		// Reset won while the submit round trip was in flight.
		c.mu.Unlock()
		return err
	}
	if err != nil {
		c.state = domain.StateFailed
		c.lastStatus = domain.JobStatus{Error: err.Error()}
		c.mu.Unlock()
		c.bus.Publish(Event{Type: EventTypeFailed, Message: err.Error()})
		return err
	}
	c.state = domain.StatePolling
	c.mu.Unlock()

	// A previous loop may still be winding down after ending itself on
	// a terminal tick; wait for it so Start cannot collide with it.
	c.sched.Stop()
	if err := c.sched.Start(func() bool { return c.tick(gen) }); err != nil {
		c.mu.Lock()
		if gen == c.generation {
			c.state = domain.StateFailed
			c.lastStatus = domain.JobStatus{Error: err.Error()}
		}
		c.mu.Unlock()
		c.bus.Publish(Event{Type: EventTypeFailed, Message: err.Error()})
		return err
	}
	return nil
}

// tick performs one status poll and applies the result unless a reset
// or terminal transition has advanced the generation since dispatch.
// It reports whether the poll loop should keep going.
func (c *Controller) tick(gen uint64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), PollInterval*10)
	defer cancel()

	status, err := c.backend.Poll(ctx)

	c.mu.Lock()
	if gen != c.generation || c.state != domain.StatePolling {
		// Stale loop; let it end itself.
		c.mu.Unlock()
		return false
	}

	if err != nil {
		c.mu.Unlock()
		c.log.Warn("status poll failed", "error", err)
		c.bus.Publish(Event{Type: EventTypePollWarning, Message: err.Error()})
		return true
	}

	c.lastStatus = status

	if status.Running {
		c.mu.Unlock()
		c.bus.Publish(Event{
			Type:     EventTypeProgress,
			Progress: status.Progress,
			Stage:    status.Stage,
		})
		return true
	}

	// Terminal snapshot. Advance the generation so a tick already in
	// flight cannot emit after this one.
	c.generation++
	event := terminalEvent(status)
	if event.Type == EventTypeCompleted {
		c.state = domain.StateCompleted
	} else {
		c.state = domain.StateFailed
	}
	c.mu.Unlock()

	c.bus.Publish(event)
	return false
}

func terminalEvent(status domain.JobStatus) Event {
	switch {
	case len(status.OutputFiles) > 0:
		return Event{Type: EventTypeCompleted, OutputFiles: status.OutputFiles}
	case status.Error != "":
		return Event{Type: EventTypeFailed, Message: status.Error}
	default:
		return Event{Type: EventTypeFailed, Message: "no output produced"}
	}
}

// Reset stops polling, clears backend state best-effort and returns
// the controller to idle. Safe to call from any state.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	c.generation++
	c.state = domain.StateIdle
	c.lastStatus = domain.JobStatus{}
	c.mu.Unlock()

	c.sched.Stop()

	if err := c.backend.Reset(ctx); err != nil {
		c.log.Warn("backend reset failed", "error", err)
	}

	c.bus.Publish(Event{Type: EventTypeReset})
}

// Close stops the poll scheduler. Called on teardown.
func (c *Controller) Close() {
	c.sched.Stop()
}

// State returns the current lifecycle state.
func (c *Controller) State() domain.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastStatus returns the most recent status snapshot.
func (c *Controller) LastStatus() domain.JobStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastStatus
}

var _ Backend = (*client.Client)(nil)
