// Package lifecycle tracks the configuration service state. Restarting the
// service reloads the configuration from durable state.
//
//	stopped --start--> starting --started--> running
//	running --restart--> restarting --started--> running
//	starting|restarting --fail--> failed --restart--> restarting
//	running|failed --stop--> stopping --stopped--> stopped
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/msgsight/cfgd/pkg/logging"
	"github.com/msgsight/cfgd/pkg/metrics"
)

// States.
const (
	StateStopped    = "stopped"
	StateStarting   = "starting"
	StateRunning    = "running"
	StateRestarting = "restarting"
	StateStopping   = "stopping"
	StateFailed     = "failed"
)

// Events.
const (
	EventStart   = "start"
	EventStarted = "started"
	EventRestart = "restart"
	EventFail    = "fail"
	EventStop    = "stop"
	EventStopped = "stopped"
)

// ErrInvalidState is returned when an operation is not allowed in the
// current state.
var ErrInvalidState = errors.New("operation not allowed in current state")

// Reloader rebuilds the configuration from durable state.
type Reloader interface {
	Reload(ctx context.Context) (bool, error)
}

// Status is a point-in-time view of the service.
type Status struct {
	State     string    `json:"State"`
	Since     time.Time `json:"Since"`
	StartedAt time.Time `json:"StartedAt,omitzero"`
	Restarts  int       `json:"Restarts"`
	LastError string    `json:"LastError,omitempty"`
}

// Service drives the lifecycle state machine.
type Service struct {
	// mu serializes operations; the FSM itself is only touched under mu.
	mu       sync.Mutex
	fsm      *fsm.FSM
	reloader Reloader
	log      *slog.Logger
	metrics  *metrics.Metrics

	since     time.Time
	startedAt time.Time
	restarts  int
	lastErr   error
	onStop    []func(context.Context) error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records state transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// OnStop registers a hook run while the service is stopping.
func OnStop(fn func(context.Context) error) Option {
	return func(s *Service) { s.onStop = append(s.onStop, fn) }
}

// New creates a stopped Service.
func New(r Reloader, opts ...Option) *Service {
	s := &Service{reloader: r, log: logging.Nop(), since: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	s.fsm = fsm.NewFSM(
		StateStopped,
		fsm.Events{
			{Name: EventStart, Src: []string{StateStopped}, Dst: StateStarting},
			{Name: EventStarted, Src: []string{StateStarting, StateRestarting}, Dst: StateRunning},
			{Name: EventRestart, Src: []string{StateRunning, StateFailed}, Dst: StateRestarting},
			{Name: EventFail, Src: []string{StateStarting, StateRestarting}, Dst: StateFailed},
			{Name: EventStop, Src: []string{StateRunning, StateFailed}, Dst: StateStopping},
			{Name: EventStopped, Src: []string{StateStopping}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.since = time.Now()
				s.metrics.ObserveTransition(e.Dst)
				s.log.Debug("service state changed", "from", e.Src, "to", e.Dst, "event", e.Event)
			},
		},
	)
	return s
}

// State returns the current state.
func (s *Service) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.Current()
}

// Status returns the current status.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:     s.fsm.Current(),
		Since:     s.since.UTC(),
		StartedAt: s.startedAt.UTC(),
		Restarts:  s.restarts,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Start loads the configuration and moves the service to running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.event(ctx, EventStart); err != nil {
		return err
	}
	if err := s.reload(ctx); err != nil {
		return err
	}
	s.startedAt = time.Now()
	s.log.Info("service started")
	return nil
}

// Restart reloads the configuration from durable state. A failed reload
// leaves the service failed; a later Restart may recover it.
func (s *Service) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.event(ctx, EventRestart); err != nil {
		return err
	}
	s.restarts++
	if err := s.reload(ctx); err != nil {
		return err
	}
	s.log.Info("service restarted", "restarts", s.restarts)
	return nil
}

// Stop runs the stop hooks and moves the service to stopped. Hook errors
// are joined and returned; the service stops regardless.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.event(ctx, EventStop); err != nil {
		return err
	}
	var errs []error
	for _, fn := range s.onStop {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.event(ctx, EventStopped); err != nil {
		errs = append(errs, err)
	}
	s.log.Info("service stopped")
	return errors.Join(errs...)
}

func (s *Service) reload(ctx context.Context) error {
	if _, err := s.reloader.Reload(ctx); err != nil {
		s.lastErr = err
		s.log.Error("configuration reload failed", "error", err)
		if ferr := s.event(ctx, EventFail); ferr != nil {
			return errors.Join(err, ferr)
		}
		return fmt.Errorf("reload configuration: %w", err)
	}
	s.lastErr = nil
	return s.event(ctx, EventStarted)
}

func (s *Service) event(ctx context.Context, name string) error {
	err := s.fsm.Event(ctx, name)
	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, name, s.fsm.Current())
	}
	return err
}
