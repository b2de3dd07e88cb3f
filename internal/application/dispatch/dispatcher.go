// Package dispatch hands translated statements to the LRS client.
// Delivery is fire-and-forget: failures are logged and journaled, never
// retried.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
	"github.com/alem-hub/scorm-interceptor/pkg/logger"
	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

// journalTimeout bounds a single journal write.
const journalTimeout = 5 * time.Second

// ══════════════════════════════════════════════════════════════════════════════
// LRS CONNECTOR
// ══════════════════════════════════════════════════════════════════════════════

// InitLRS applies the LRS settings to client. It reports false, and leaves
// client untouched, when no endpoint is configured. Username and password
// take precedence over the auth key; both must be set to be used.
func InitLRS(lrs config.LRSConfig, client statement.Configurer, log *slog.Logger) bool {
	if log == nil {
		log = slog.Default()
	}

	if lrs.Endpoint == "" {
		log.Debug("no lrs endpoint configured, statements will be discarded")
		return false
	}

	transport := statement.TransportConfig{Endpoint: lrs.Endpoint}
	switch {
	case lrs.Username != "" && lrs.Password != "":
		transport.User = lrs.Username
		transport.Password = lrs.Password
	case lrs.AuthKey != "":
		transport.Auth = "Basic " + lrs.AuthKey
	}

	client.ChangeConfig(transport)
	log.Debug("lrs connected", logger.Endpoint(lrs.Endpoint))
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Hooks are optional observers of a Dispatcher.
type Hooks struct {
	// OnDiscarded runs when a statement is dropped because delivery is disabled.
	OnDiscarded func(st statement.Statement)

	// OnDelivered runs after every completed send, on the sender's goroutine.
	OnDelivered func(entry statement.Entry)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithJournal records every completed send.
func WithJournal(journal statement.Journal) Option {
	return func(d *Dispatcher) {
		d.journal = journal
	}
}

// WithClock sets the clock used for journal timestamps.
func WithClock(clock timeutil.Clock) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}

// WithHooks sets the dispatcher hooks.
func WithHooks(hooks Hooks) Option {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// WithIDGenerator replaces the UUID generator for statement ids.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// Dispatcher submits statements once enabled. The enabled flag is only ever
// set, never cleared.
type Dispatcher struct {
	sender  statement.Sender
	journal statement.Journal
	clock   timeutil.Clock
	logger  *slog.Logger
	hooks   Hooks
	newID   func() string

	enabled  atomic.Bool
	inflight sync.WaitGroup
}

// NewDispatcher creates a disabled Dispatcher sending through sender.
func NewDispatcher(sender statement.Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		clock:  timeutil.Real(),
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enable turns delivery on.
func (d *Dispatcher) Enable() {
	d.enabled.Store(true)
}

// Enabled reports whether delivery is on.
func (d *Dispatcher) Enabled() bool {
	return d.enabled.Load()
}

// Dispatch assigns st an id and hands it to the sender without waiting for
// the result. It reports false when delivery is disabled and st was dropped.
func (d *Dispatcher) Dispatch(st *statement.Statement) bool {
	if st == nil {
		return false
	}
	out := *st

	if !d.Enabled() {
		d.logger.Debug("lrs not configured, statement discarded", logger.Verb(out.Verb.Name))
		if d.hooks.OnDiscarded != nil {
			d.hooks.OnDiscarded(out)
		}
		return false
	}

	out.ID = d.newID()
	d.logger.Debug("sending statement",
		logger.StatementID(out.ID),
		logger.Verb(out.Verb.Name),
		"actor", out.Actor.ID,
	)

	d.inflight.Add(1)
	d.sender.SendStatements([]statement.Statement{out}, func(err error) {
		defer d.inflight.Done()
		d.complete(out, err)
	})
	return true
}

func (d *Dispatcher) complete(st statement.Statement, sendErr error) {
	entry := statement.NewEntry(st, sendErr, d.clock.Now())

	if sendErr != nil {
		d.logger.Error("statement delivery failed",
			logger.StatementID(st.ID),
			logger.Verb(st.Verb.Name),
			logger.Err(sendErr),
		)
	} else {
		d.logger.Debug("statement sent", logger.StatementID(st.ID))
	}

	if d.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		if err := d.journal.Record(ctx, entry); err != nil {
			d.logger.Error("failed to journal statement",
				logger.StatementID(st.ID),
				logger.Err(err),
			)
		}
		cancel()
	}

	if d.hooks.OnDelivered != nil {
		d.hooks.OnDelivered(entry)
	}
}

// Drain waits until every send started so far has completed, or ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
