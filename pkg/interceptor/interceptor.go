// Package interceptor wires the SCORM to xAPI pipeline together: it resolves
// configuration, connects the LRS client, starts discovery of the host
// tracking function and routes every intercepted call through translation
// and dispatch.
//
//	reg := host.NewRegistry()
//	ic := interceptor.New(reg)
//	defer ic.Close()
//	err := ic.Init(map[string]any{"lrs": map[string]any{"endpoint": url}})
package interceptor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/application/dispatch"
	"github.com/alem-hub/scorm-interceptor/internal/application/intercept"
	"github.com/alem-hub/scorm-interceptor/internal/application/translate"
	"github.com/alem-hub/scorm-interceptor/internal/domain/scorm"
	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/external/xapi"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/metrics"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/scheduler"
	"github.com/alem-hub/scorm-interceptor/pkg/circuitbreaker"
	"github.com/alem-hub/scorm-interceptor/pkg/logger"
	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

// Host is the runtime the interceptor attaches to.
type Host interface {
	scorm.FunctionRegistry
	scorm.APIDirectory
}

// Transport is an LRS client.
type Transport interface {
	statement.Configurer
	statement.Sender
}

// Option configures an Interceptor.
type Option func(*options)

type options struct {
	transport Transport
	vocab     statement.Vocabulary
	journal   statement.Journal
	metrics   *metrics.Metrics
	clock     timeutil.Clock
	logger    *slog.Logger
}

// WithTransport replaces the default xAPI HTTP client.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithVocabulary replaces the ADL verb vocabulary.
func WithVocabulary(v statement.Vocabulary) Option {
	return func(o *options) { o.vocab = v }
}

// WithJournal replaces the in-memory statement journal.
func WithJournal(j statement.Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithMetrics sets the metrics the interceptor reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock sets the clock for polling, delays and timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger. When it is not set the interceptor logs to
// stderr, gated by the debug switch of the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Status is a snapshot of the interceptor.
type Status struct {
	Initialized  bool                        `json:"initialized"`
	Function     string                      `json:"function,omitempty"`
	State        string                      `json:"state"`
	Interception intercept.InterceptionState `json:"interception"`
	LRSEnabled   bool                        `json:"lrsEnabled"`
	Breaker      string                      `json:"breaker,omitempty"`
}

// Interceptor is the entry point of the library.
type Interceptor struct {
	host       Host
	transport  Transport
	client     *xapi.Client
	vocab      statement.Vocabulary
	journal    statement.Journal
	metrics    *metrics.Metrics
	clock      timeutil.Clock
	logger     *slog.Logger
	debug      *logger.Switch
	queue      *scheduler.Queue
	dispatcher *dispatch.Dispatcher
	engine     *translate.Engine

	mu       sync.Mutex
	cfg      *config.Config
	session  *intercept.Session
	sessions []*intercept.Session
	closed   bool
}

// New creates an Interceptor attached to h. Nothing happens until Init.
func New(h Host, opts ...Option) *Interceptor {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	i := &Interceptor{
		host:    h,
		vocab:   o.vocab,
		journal: o.journal,
		metrics: o.metrics,
		clock:   o.clock,
		logger:  o.logger,
	}

	if i.clock == nil {
		i.clock = timeutil.Real()
	}
	if i.logger == nil {
		i.debug = logger.NewSwitch(false)
		i.logger = logger.New(logger.Options{Format: logger.FormatText, Switch: i.debug})
	}
	if i.metrics == nil {
		i.metrics = metrics.New(false)
	}
	if i.vocab == nil {
		i.vocab = xapi.ADLVocabulary()
	}
	if i.journal == nil {
		i.journal = memory.NewJournal(memory.DefaultSize)
	}

	i.transport = o.transport
	if i.transport == nil {
		i.client = xapi.NewClient(i.clientConfig())
		i.transport = i.client
	}

	i.queue = scheduler.NewQueue(scheduler.QueueConfig{
		Logger: i.logger,
		Clock:  i.clock,
		OnTaskDone: func(r scheduler.TaskResult) {
			i.metrics.TaskFinished(r.Err)
		},
	})

	i.dispatcher = dispatch.NewDispatcher(i.transport,
		dispatch.WithJournal(i.journal),
		dispatch.WithClock(i.clock),
		dispatch.WithLogger(i.logger),
		dispatch.WithHooks(dispatch.Hooks{
			OnDiscarded: func(statement.Statement) {
				i.metrics.StatementDispatched("discarded")
			},
			OnDelivered: func(e statement.Entry) {
				i.metrics.StatementDispatched(string(e.Outcome))
			},
		}),
	)

	i.engine = translate.NewEngine(i.vocab, h, i.clock)

	return i
}

func (i *Interceptor) clientConfig() xapi.ClientConfig {
	cfg := xapi.DefaultClientConfig()
	cfg.Logger = i.logger
	cfg.Clock = i.clock
	cfg.Breaker = circuitbreaker.LRSBreaker(i.clock, func(name string, from, to circuitbreaker.State) {
		i.metrics.SetBreakerState(name, int(to))
		i.logger.Error("lrs circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})
	cfg.OnSent = func(_ int, latency time.Duration, err error) {
		i.metrics.ObserveSend(latency, err)
	}
	return cfg
}

// Init resolves overrides against the defaults, connects the LRS when an
// endpoint is configured and starts a new discovery session. It returns an
// error only for configuration that cannot be used; discovery failure is
// reported through Session().State().
func (i *Interceptor) Init(overrides map[string]any) error {
	cfg, err := config.Resolve(overrides)
	if err != nil {
		return err
	}

	known := func(name string) bool {
		_, ok := i.vocab.Verb(name)
		return ok
	}
	if err := cfg.Validate(known); err != nil {
		return fmt.Errorf("%w: %w", statement.ErrUnknownVerb, err)
	}

	if i.debug != nil {
		i.debug.Set(cfg.Debug)
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}

	if dispatch.InitLRS(cfg.LRS, i.transport, i.logger) {
		i.dispatcher.Enable()
	}

	session := intercept.NewSession(cfg, i.host, i.queue, i.pipeline(cfg),
		intercept.WithClock(i.clock),
		intercept.WithLogger(i.logger),
		intercept.WithHooks(intercept.Hooks{
			OnCall: func(call scorm.Call) {
				i.metrics.CallIntercepted(call.Function)
			},
			OnDone: func(state intercept.State, _ int) {
				i.metrics.DiscoveryFinished(state.String())
			},
		}),
	)
	i.cfg = cfg
	i.session = session
	i.sessions = append(i.sessions, session)
	i.mu.Unlock()

	session.Start()
	return nil
}

// pipeline translates and dispatches one intercepted call. It runs on the
// task queue, never on the caller of the host function.
func (i *Interceptor) pipeline(cfg *config.Config) func(call scorm.Call) {
	return func(call scorm.Call) {
		st, err := i.engine.Translate(call, cfg)
		i.metrics.TranslationFinished(err)
		if err != nil {
			i.logger.Error("failed to translate scorm call",
				logger.Element(call.Element),
				logger.Err(err),
			)
			return
		}

		i.logger.Debug("scorm call translated",
			logger.Element(call.Element),
			logger.Verb(st.Verb.Name),
		)
		i.dispatcher.Dispatch(st)
	}
}

// Session returns the session started by the latest Init, or nil.
func (i *Interceptor) Session() *intercept.Session {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.session
}

// Config returns the configuration resolved by the latest Init, or nil.
func (i *Interceptor) Config() *config.Config {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cfg
}

// LRSEnabled reports whether statements are being sent.
func (i *Interceptor) LRSEnabled() bool {
	return i.dispatcher.Enabled()
}

// LRSCheck returns a health check that queries the LRS about endpoint. The
// check passes while no LRS is enabled. It is nil when a custom transport
// was supplied with WithTransport.
func (i *Interceptor) LRSCheck() func(ctx context.Context) error {
	if i.client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if !i.dispatcher.Enabled() {
			return nil
		}
		_, err := i.client.About(ctx)
		return err
	}
}

// Journal returns the statement journal.
func (i *Interceptor) Journal() statement.Journal {
	return i.journal
}

// Metrics returns the metrics the interceptor reports to.
func (i *Interceptor) Metrics() *metrics.Metrics {
	return i.metrics
}

// Vocabulary returns the verb vocabulary configuration is checked against.
func (i *Interceptor) Vocabulary() statement.Vocabulary {
	return i.vocab
}

// Status returns a snapshot for health reporting.
func (i *Interceptor) Status() Status {
	session := i.Session()

	st := Status{
		State:      intercept.StateInit.String(),
		LRSEnabled: i.LRSEnabled(),
	}
	if session != nil {
		st.Initialized = true
		st.Function = session.Function()
		st.State = session.State().String()
		st.Interception = session.Interception()
	}
	if i.client != nil {
		st.Breaker = i.client.BreakerState().String()
	}
	return st
}

// Drain waits for scheduled pipeline work and in-flight sends to finish.
func (i *Interceptor) Drain(ctx context.Context) error {
	if err := i.queue.Wait(ctx); err != nil {
		return err
	}
	return i.dispatcher.Drain(ctx)
}

// Close stops every discovery session and drops pipeline work that has not
// started. Installed wrappers keep calling the host function.
func (i *Interceptor) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	sessions := i.sessions
	i.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	i.queue.Close()
}
