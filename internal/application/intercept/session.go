// Package intercept finds the host tracking function and wraps it so every
// call is also handed to the translation pipeline.
package intercept

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/domain/scorm"
	"github.com/alem-hub/scorm-interceptor/pkg/logger"
	"github.com/alem-hub/scorm-interceptor/pkg/retry"
	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// State is the discovery state of a Session.
type State int

const (
	// StateInit means Start has not been called.
	StateInit State = iota
	// StatePolling means the session is looking for the tracking function.
	StatePolling
	// StateIntercepted means the wrapper is installed.
	StateIntercepted
	// StateExhausted means every attempt failed. The session never retries.
	StateExhausted
	// StateStopped means the session was stopped before it finished.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePolling:
		return "polling"
	case StateIntercepted:
		return "intercepted"
	case StateExhausted:
		return "exhausted"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state can no longer change.
func (s State) IsTerminal() bool {
	return s == StateIntercepted || s == StateExhausted || s == StateStopped
}

// InterceptionState is the discovery progress of a session.
type InterceptionState struct {
	AttemptsRemaining int
	Found             bool
}

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// ══════════════════════════════════════════════════════════════════════════════

// Executor runs poll attempts and deferred pipeline work. Implementations
// must serialize Exclusive calls with deferred functions.
type Executor interface {
	Exclusive(fn func())
	Defer(delay time.Duration, name string, fn func())
}

// Hooks are optional observers of a session.
type Hooks struct {
	// OnCall runs on the caller's goroutine after every wrapped call.
	OnCall func(call scorm.Call)

	// OnDone runs once when discovery reaches a terminal state.
	OnDone func(state State, attempts int)
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for polling and call timestamps.
func WithClock(clock timeutil.Clock) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithHooks sets the session hooks.
func WithHooks(hooks Hooks) Option {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WRAPPER
// ══════════════════════════════════════════════════════════════════════════════

// Wrap returns a function that calls original, then after, and returns what
// original returned. A panic in original propagates and after is not called.
func Wrap(original scorm.SetValueFunc, after func(call scorm.Call)) scorm.SetValueFunc {
	return func(element, value string) string {
		result := original(element, value)
		after(scorm.Call{Element: element, Value: value})
		return result
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session is one discovery run, created per Init. Intercepted calls are
// passed to handle on the executor after the configured dispatch delay.
type Session struct {
	function     string
	maxAttempts  int
	pollInterval time.Duration
	delay        time.Duration

	registry scorm.FunctionRegistry
	exec     Executor
	handle   func(call scorm.Call)
	clock    timeutil.Clock
	logger   *slog.Logger
	hooks    Hooks

	mu        sync.Mutex
	state     State
	remaining int
	found     bool
	stopping  bool
	run       *retry.Run
	done      chan struct{}
}

// NewSession creates a session for cfg. It does not start polling.
func NewSession(cfg *config.Config, registry scorm.FunctionRegistry, exec Executor, handle func(call scorm.Call), opts ...Option) *Session {
	s := &Session{
		function:     cfg.SCORM.SetValueFunction,
		maxAttempts:  cfg.Interception.MaxAttempts,
		pollInterval: cfg.Interception.PollInterval,
		delay:        cfg.Interception.DispatchDelay,
		registry:     registry,
		exec:         exec,
		handle:       handle,
		clock:        timeutil.Real(),
		logger:       slog.Default(),
		remaining:    cfg.Interception.MaxAttempts,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins polling. Only the first call has an effect.
func (s *Session) Start() {
	s.mu.Lock()
	if s.state != StateInit {
		s.mu.Unlock()
		return
	}
	s.state = StatePolling
	s.mu.Unlock()

	s.logger.Debug("looking for tracking function",
		logger.Function(s.function),
		"max_attempts", s.maxAttempts,
		"interval", s.pollInterval,
	)

	poller := retry.NewPoller(
		retry.WithMaxAttempts(s.maxAttempts),
		retry.WithInterval(s.pollInterval),
		retry.WithClock(s.clock),
		retry.WithExecutor(s.exec.Exclusive),
		retry.WithOnDone(s.finish),
	)
	run := poller.Start(s.attempt)

	s.mu.Lock()
	s.run = run
	stopping := s.stopping
	s.mu.Unlock()

	if stopping {
		run.Stop()
	}
}

// attempt is one poll tick. It reports whether the wrapper was installed.
func (s *Session) attempt(n int) bool {
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		return false
	}

	installed := s.registry.Replace(s.function, func(original scorm.SetValueFunc) scorm.SetValueFunc {
		return Wrap(original, s.intercepted)
	})

	s.mu.Lock()
	if installed {
		s.found = true
	} else {
		s.remaining--
	}
	remaining := s.remaining
	s.mu.Unlock()

	if !installed {
		s.logger.Debug("tracking function not found",
			logger.Function(s.function),
			logger.Attempt(n),
			"remaining", remaining,
		)
	}
	return installed
}

func (s *Session) intercepted(call scorm.Call) {
	call.Function = s.function
	call.At = s.clock.Now()

	if s.hooks.OnCall != nil {
		s.hooks.OnCall(call)
	}

	s.exec.Defer(s.delay, "translate "+call.Element, func() {
		s.handle(call)
	})
}

func (s *Session) finish(outcome retry.Outcome, attempts int) {
	var state State
	switch outcome {
	case retry.OutcomeSucceeded:
		state = StateIntercepted
	case retry.OutcomeExhausted:
		state = StateExhausted
	default:
		state = StateStopped
	}

	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return
	}
	s.state = state
	close(s.done)
	s.mu.Unlock()

	switch state {
	case StateIntercepted:
		s.logger.Info("tracking function intercepted",
			logger.Function(s.function),
			logger.Attempt(attempts),
		)
	case StateExhausted:
		s.logger.Warn("tracking function not found, giving up",
			logger.Function(s.function),
			"attempts", attempts,
		)
	default:
		s.logger.Debug("discovery stopped", logger.Function(s.function))
	}

	if s.hooks.OnDone != nil {
		s.hooks.OnDone(state, attempts)
	}
}

// Stop ends discovery if it is still running. An installed wrapper stays in
// place.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateInit {
		s.state = StateStopped
		close(s.done)
		s.mu.Unlock()
		return
	}
	s.stopping = true
	run := s.run
	s.mu.Unlock()

	if run != nil {
		run.Stop()
	}
}

// State returns the current discovery state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interception returns the discovery progress.
func (s *Session) Interception() InterceptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return InterceptionState{AttemptsRemaining: s.remaining, Found: s.found}
}

// Function returns the name of the tracking function this session targets.
func (s *Session) Function() string {
	return s.function
}

// Done is closed when discovery reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
