package intercept

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/domain/scorm"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/host"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/scheduler"
	"github.com/alem-hub/scorm-interceptor/pkg/logger"
	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

const fn = config.DefaultSetValueFunction

type harness struct {
	clock    *timeutil.ManualClock
	registry *host.Registry
	queue    *scheduler.Queue

	mu      sync.Mutex
	handled []scorm.Call
	done    []State
}

func newHarness() *harness {
	clock := timeutil.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return &harness{
		clock:    clock,
		registry: host.NewRegistry(),
		queue:    scheduler.NewQueue(scheduler.QueueConfig{Logger: logger.Discard(), Clock: clock}),
	}
}

func (h *harness) session(t *testing.T, overrides map[string]any) *Session {
	t.Helper()
	cfg, err := config.Resolve(overrides)
	require.NoError(t, err)

	return NewSession(cfg, h.registry, h.queue, func(call scorm.Call) {
		h.mu.Lock()
		h.handled = append(h.handled, call)
		h.mu.Unlock()
	},
		WithClock(h.clock),
		WithLogger(logger.Discard()),
		WithHooks(Hooks{OnDone: func(state State, _ int) {
			h.done = append(h.done, state)
		}}),
	)
}

func (h *harness) calls() []scorm.Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]scorm.Call(nil), h.handled...)
}

func TestWrap_OrderAndResult(t *testing.T) {
	var order []string
	original := func(element, value string) string {
		order = append(order, "original")
		return "false"
	}

	wrapped := Wrap(original, func(call scorm.Call) {
		order = append(order, "after:"+call.Element+"="+call.Value)
	})

	assert.Equal(t, "false", wrapped("cmi.exit", "suspend"))
	assert.Equal(t, []string{"original", "after:cmi.exit=suspend"}, order)
}

func TestWrap_PanicSkipsSideEffect(t *testing.T) {
	called := false
	wrapped := Wrap(func(string, string) string { panic("host failure") }, func(scorm.Call) { called = true })

	assert.PanicsWithValue(t, "host failure", func() { wrapped("cmi.exit", "") })
	assert.False(t, called)
}

func TestSession_InterceptsOnTickK(t *testing.T) {
	h := newHarness()
	s := h.session(t, nil)

	assert.Equal(t, StateInit, s.State())
	s.Start()
	assert.Equal(t, StatePolling, s.State())

	// Missing for the first two ticks.
	h.clock.Advance(500 * time.Millisecond)
	h.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, InterceptionState{AttemptsRemaining: 8}, s.Interception())

	rt := host.NewMemoryRuntime(host.StaticLearner{})
	rt.Install(h.registry, fn, config.DefaultAPI)

	h.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, StateIntercepted, s.State())
	assert.Equal(t, InterceptionState{AttemptsRemaining: 8, Found: true}, s.Interception())
	assert.Equal(t, []State{StateIntercepted}, h.done)
	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}

	// No further ticks once intercepted.
	h.clock.Advance(10 * time.Second)
	assert.Equal(t, InterceptionState{AttemptsRemaining: 8, Found: true}, s.Interception())
}

func TestSession_WrappedCallIsDeferred(t *testing.T) {
	h := newHarness()
	rt := host.NewMemoryRuntime(host.StaticLearner{})
	rt.Install(h.registry, fn, config.DefaultAPI)

	s := h.session(t, nil)
	s.Start()
	h.clock.Advance(500 * time.Millisecond)
	require.Equal(t, StateIntercepted, s.State())

	result, err := h.registry.Call(fn, "cmi.core.lesson_status", "completed")
	require.NoError(t, err)
	assert.Equal(t, "true", result)
	assert.Equal(t, "completed", rt.GetValue("cmi.core.lesson_status"))

	assert.Empty(t, h.calls(), "pipeline runs on a later turn")
	assert.Equal(t, 1, h.queue.Pending())

	h.clock.Advance(49 * time.Millisecond)
	assert.Empty(t, h.calls())

	h.clock.Advance(time.Millisecond)
	calls := h.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, fn, calls[0].Function)
	assert.Equal(t, "cmi.core.lesson_status", calls[0].Element)
	assert.Equal(t, "completed", calls[0].Value)
	assert.False(t, calls[0].At.IsZero())
}

func TestSession_PanicInOriginalSchedulesNothing(t *testing.T) {
	h := newHarness()
	h.registry.Define(fn, func(string, string) string { panic("host failure") })

	s := h.session(t, nil)
	s.Start()
	h.clock.Advance(500 * time.Millisecond)
	require.Equal(t, StateIntercepted, s.State())

	assert.Panics(t, func() { _, _ = h.registry.Call(fn, "cmi.exit", "suspend") })
	assert.Zero(t, h.queue.Pending())
}

func TestSession_ExhaustsAfterMaxAttempts(t *testing.T) {
	h := newHarness()
	s := h.session(t, map[string]any{
		"interception": map[string]any{"maxAttempts": 3, "pollInterval": "100ms"},
	})
	s.Start()

	h.clock.Advance(200 * time.Millisecond)
	assert.Equal(t, StatePolling, s.State())
	assert.Equal(t, 1, s.Interception().AttemptsRemaining)

	h.clock.Advance(100 * time.Millisecond)
	assert.Equal(t, StateExhausted, s.State())
	assert.Equal(t, InterceptionState{AttemptsRemaining: 0}, s.Interception())
	assert.Equal(t, []State{StateExhausted}, h.done)
	assert.Zero(t, h.clock.Pending())

	// A function registered later is never picked up.
	h.registry.Define(fn, func(string, string) string { return "true" })
	h.clock.Advance(time.Second)
	assert.Equal(t, StateExhausted, s.State())

	_, _ = h.registry.Call(fn, "cmi.exit", "")
	assert.Zero(t, h.queue.Pending())
}

func TestSession_ZeroAttemptsExhaustsImmediately(t *testing.T) {
	h := newHarness()
	h.registry.Define(fn, func(string, string) string { return "true" })

	s := h.session(t, map[string]any{
		"interception": map[string]any{"maxAttempts": 0},
	})
	s.Start()

	assert.Equal(t, StateExhausted, s.State())
	assert.Equal(t, InterceptionState{}, s.Interception())
	assert.Zero(t, h.clock.Pending())
}

func TestSession_Stop(t *testing.T) {
	h := newHarness()
	s := h.session(t, nil)
	s.Start()

	s.Stop()
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, []State{StateStopped}, h.done)

	h.registry.Define(fn, func(string, string) string { return "true" })
	h.clock.Advance(time.Second)
	assert.Equal(t, StateStopped, s.State())
}

func TestSession_StopBeforeStart(t *testing.T) {
	h := newHarness()
	s := h.session(t, nil)

	s.Stop()
	s.Start()

	assert.Equal(t, StateStopped, s.State())
	assert.Zero(t, h.clock.Pending())
}

// armClock runs onArm the first time a timer is armed.
type armClock struct {
	*timeutil.ManualClock
	onArm func()
}

func (c *armClock) AfterFunc(d time.Duration, f func()) timeutil.Timer {
	t := c.ManualClock.AfterFunc(d, f)
	if c.onArm != nil {
		onArm := c.onArm
		c.onArm = nil
		onArm()
	}
	return t
}

func TestSession_StopWhileStarting(t *testing.T) {
	h := newHarness()
	clock := &armClock{ManualClock: h.clock}
	cfg, err := config.Resolve(nil)
	require.NoError(t, err)

	s := NewSession(cfg, h.registry, h.queue, func(scorm.Call) {},
		WithClock(clock),
		WithLogger(logger.Discard()),
	)
	clock.onArm = s.Stop

	s.Start()
	assert.Equal(t, StateStopped, s.State())

	h.registry.Define(fn, func(string, string) string { return "true" })
	h.clock.Advance(5 * time.Second)

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, InterceptionState{AttemptsRemaining: 10}, s.Interception())
	assert.Zero(t, h.clock.Pending())
}

func TestSession_ReinitKeepsEarlierWrapper(t *testing.T) {
	h := newHarness()
	h.registry.Define(fn, func(string, string) string { return "true" })

	first := h.session(t, nil)
	first.Start()
	h.clock.Advance(500 * time.Millisecond)

	second := h.session(t, nil)
	second.Start()
	h.clock.Advance(500 * time.Millisecond)
	require.Equal(t, StateIntercepted, second.State())

	_, err := h.registry.Call(fn, "cmi.exit", "")
	require.NoError(t, err)
	h.clock.Advance(50 * time.Millisecond)

	assert.Len(t, h.calls(), 2, "both wrappers forward the call")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "polling", StatePolling.String())
	assert.Equal(t, "intercepted", StateIntercepted.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.False(t, StatePolling.IsTerminal())
}
