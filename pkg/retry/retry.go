// Package retry provides bounded, fixed-interval polling on an injectable clock.
// It is used to wait for collaborators that appear at an unknown point after
// start-up, such as a host function registered late by the SCORM runtime.
package retry

import (
	"sync"
	"time"

	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

// Outcome is the completion state of a polling run.
type Outcome int

const (
	// OutcomePending means the run is still polling.
	OutcomePending Outcome = iota
	// OutcomeSucceeded means an attempt reported success.
	OutcomeSucceeded
	// OutcomeExhausted means every attempt failed.
	OutcomeExhausted
	// OutcomeStopped means the run was stopped before it finished.
	OutcomeStopped
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds polling configuration.
type Config struct {
	// MaxAttempts is the number of attempts before giving up.
	// Default: 10
	MaxAttempts int

	// Interval is the fixed delay before every attempt, the first one included.
	// Default: 500ms
	Interval time.Duration

	// Clock schedules the attempts.
	// Default: timeutil.Real()
	Clock timeutil.Clock

	// Executor runs each attempt. It lets callers serialize attempts with
	// other work. If nil, attempts run directly on the timer callback.
	Executor func(func())

	// OnDone is called once, after the run reaches a terminal outcome.
	OnDone func(outcome Outcome, attempts int)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		Interval:    500 * time.Millisecond,
		Clock:       timeutil.Real(),
	}
}

// Option is a functional option for configuring a Poller.
type Option func(*Config)

// WithMaxAttempts sets the attempt budget. Zero is allowed and means the run
// is exhausted without a single attempt.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInterval sets the delay between attempts.
func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Interval = d
		}
	}
}

// WithClock sets the clock used to schedule attempts.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithExecutor sets the function that runs each attempt.
func WithExecutor(fn func(func())) Option {
	return func(c *Config) {
		c.Executor = fn
	}
}

// WithOnDone sets the completion callback.
func WithOnDone(fn func(outcome Outcome, attempts int)) Option {
	return func(c *Config) {
		c.OnDone = fn
	}
}

// Poller starts polling runs.
type Poller struct {
	config Config
}

// NewPoller creates a Poller with the given options.
func NewPoller(opts ...Option) *Poller {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Poller{config: config}
}

// Config returns the effective configuration.
func (p *Poller) Config() Config {
	return p.config
}

// Run is a single polling run.
type Run struct {
	config Config
	action func(attempt int) bool

	mu        sync.Mutex
	remaining int
	attempts  int
	outcome   Outcome
	timer     timeutil.Timer
	done      chan struct{}
}

// Start begins a run. action is called once per tick with the 1-based attempt
// number and returns true when the awaited condition holds.
func (p *Poller) Start(action func(attempt int) bool) *Run {
	r := &Run{
		config:    p.config,
		action:    action,
		remaining: p.config.MaxAttempts,
		done:      make(chan struct{}),
	}

	if r.remaining <= 0 {
		r.finish(OutcomeExhausted)
		return r
	}

	r.mu.Lock()
	r.timer = r.config.Clock.AfterFunc(r.config.Interval, r.tick)
	r.mu.Unlock()

	return r
}

func (r *Run) tick() {
	if r.config.Executor != nil {
		r.config.Executor(r.attempt)
		return
	}
	r.attempt()
}

func (r *Run) attempt() {
	r.mu.Lock()
	if r.outcome != OutcomePending {
		r.mu.Unlock()
		return
	}
	r.attempts++
	attempt := r.attempts
	r.mu.Unlock()

	if r.action(attempt) {
		r.finish(OutcomeSucceeded)
		return
	}

	r.mu.Lock()
	if r.outcome != OutcomePending {
		r.mu.Unlock()
		return
	}
	r.remaining--
	if r.remaining > 0 {
		r.timer = r.config.Clock.AfterFunc(r.config.Interval, r.tick)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.finish(OutcomeExhausted)
}

// finish moves the run to a terminal outcome exactly once.
func (r *Run) finish(outcome Outcome) {
	r.mu.Lock()
	if r.outcome != OutcomePending {
		r.mu.Unlock()
		return
	}
	r.outcome = outcome
	attempts := r.attempts
	if r.timer != nil {
		r.timer.Stop()
	}
	close(r.done)
	r.mu.Unlock()

	if r.config.OnDone != nil {
		r.config.OnDone(outcome, attempts)
	}
}

// Stop ends a pending run without a further attempt.
func (r *Run) Stop() {
	r.finish(OutcomeStopped)
}

// Done is closed when the run reaches a terminal outcome.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the current outcome.
func (r *Run) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Attempts returns how many attempts have run so far.
func (r *Run) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Remaining returns the attempt budget that is left.
func (r *Run) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}
