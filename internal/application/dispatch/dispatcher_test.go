package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
	"github.com/alem-hub/scorm-interceptor/pkg/logger"
	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

type fakeConfigurer struct {
	calls []statement.TransportConfig
}

func (f *fakeConfigurer) ChangeConfig(cfg statement.TransportConfig) {
	f.calls = append(f.calls, cfg)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []statement.Statement
	err  error
}

func (f *fakeSender) SendStatements(sts []statement.Statement, done func(err error)) {
	f.mu.Lock()
	f.sent = append(f.sent, sts...)
	err := f.err
	f.mu.Unlock()

	go done(err)
}

func (f *fakeSender) statements() []statement.Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]statement.Statement(nil), f.sent...)
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []statement.Entry
	err     error
}

func (j *fakeJournal) Record(_ context.Context, entry statement.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, entry)
	return nil
}

func (j *fakeJournal) Recent(_ context.Context, limit int) ([]statement.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]statement.Entry(nil), j.entries...), nil
}

func TestInitLRS(t *testing.T) {
	tests := []struct {
		name    string
		lrs     config.LRSConfig
		want    bool
		applied []statement.TransportConfig
	}{
		{
			name: "empty endpoint",
			lrs:  config.LRSConfig{Username: "u", Password: "p"},
			want: false,
		},
		{
			name:    "basic credentials",
			lrs:     config.LRSConfig{Endpoint: "https://lrs.example.org/xapi", Username: "u", Password: "p", AuthKey: "ignored"},
			want:    true,
			applied: []statement.TransportConfig{{Endpoint: "https://lrs.example.org/xapi", User: "u", Password: "p"}},
		},
		{
			name:    "auth key when password missing",
			lrs:     config.LRSConfig{Endpoint: "https://lrs.example.org/xapi", Username: "u", AuthKey: "a2V5OnNlY3JldA=="},
			want:    true,
			applied: []statement.TransportConfig{{Endpoint: "https://lrs.example.org/xapi", Auth: "Basic a2V5OnNlY3JldA=="}},
		},
		{
			name:    "anonymous",
			lrs:     config.LRSConfig{Endpoint: "http://localhost:8081/xapi"},
			want:    true,
			applied: []statement.TransportConfig{{Endpoint: "http://localhost:8081/xapi"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeConfigurer{}
			assert.Equal(t, tt.want, InitLRS(tt.lrs, client, logger.Discard()))
			assert.Equal(t, tt.applied, client.calls)
		})
	}
}

func testStatement() *statement.Statement {
	return &statement.Statement{
		Actor:  statement.Actor{ID: "mailto:ada@example.com", Name: "Ada"},
		Verb:   statement.Verb{Name: "interacted", ID: "http://adlnet.gov/expapi/verbs/interacted"},
		Object: statement.Activity{ID: "http://localhost/course/DEFAULT_COURSE"},
	}
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Drain(ctx))
}

func TestDispatcher_DiscardsWhenDisabled(t *testing.T) {
	sender := &fakeSender{}
	var discarded int
	d := NewDispatcher(sender,
		WithLogger(logger.Discard()),
		WithHooks(Hooks{OnDiscarded: func(statement.Statement) { discarded++ }}),
	)

	assert.False(t, d.Enabled())
	assert.False(t, d.Dispatch(testStatement()))
	assert.False(t, d.Dispatch(nil))

	drain(t, d)
	assert.Empty(t, sender.statements())
	assert.Equal(t, 1, discarded)
}

func TestDispatcher_SendsAndJournals(t *testing.T) {
	sender := &fakeSender{}
	journal := &fakeJournal{}
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	var delivered []statement.Outcome
	var mu sync.Mutex
	d := NewDispatcher(sender,
		WithJournal(journal),
		WithClock(timeutil.NewManualClock(at)),
		WithLogger(logger.Discard()),
		WithIDGenerator(func() string { return "3a1d8c64-0c43-4b8e-9d1c-5d3f3f6a2b01" }),
		WithHooks(Hooks{OnDelivered: func(e statement.Entry) {
			mu.Lock()
			delivered = append(delivered, e.Outcome)
			mu.Unlock()
		}}),
	)
	d.Enable()

	st := testStatement()
	assert.True(t, d.Dispatch(st))
	assert.Empty(t, st.ID, "caller's statement is not modified")

	drain(t, d)

	sent := sender.statements()
	require.Len(t, sent, 1)
	assert.Equal(t, "3a1d8c64-0c43-4b8e-9d1c-5d3f3f6a2b01", sent[0].ID)

	entries, err := journal.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, statement.OutcomeSent, entries[0].Outcome)
	assert.Equal(t, at, entries[0].RecordedAt)
	assert.Equal(t, []statement.Outcome{statement.OutcomeSent}, delivered)
}

func TestDispatcher_FailureIsJournaledNotRetried(t *testing.T) {
	sender := &fakeSender{err: errors.New("lrs unavailable")}
	journal := &fakeJournal{}
	d := NewDispatcher(sender, WithJournal(journal), WithLogger(logger.Discard()))
	d.Enable()

	assert.True(t, d.Dispatch(testStatement()))
	drain(t, d)

	assert.Len(t, sender.statements(), 1)
	entries, _ := journal.Recent(context.Background(), 10)
	require.Len(t, entries, 1)
	assert.Equal(t, statement.OutcomeFailed, entries[0].Outcome)
	assert.Equal(t, "lrs unavailable", entries[0].Error)
}

func TestDispatcher_JournalErrorIsSwallowed(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender,
		WithJournal(&fakeJournal{err: errors.New("disk full")}),
		WithLogger(logger.Discard()),
	)
	d.Enable()

	assert.True(t, d.Dispatch(testStatement()))
	drain(t, d)
	assert.Len(t, sender.statements(), 1)
}

func TestDispatcher_AssignsUniqueIDs(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, WithLogger(logger.Discard()))
	d.Enable()

	for i := 0; i < 5; i++ {
		d.Dispatch(testStatement())
	}
	drain(t, d)

	seen := map[string]bool{}
	for _, st := range sender.statements() {
		assert.Len(t, st.ID, 36)
		seen[st.ID] = true
	}
	assert.Len(t, seen, 5)
}

func TestDispatcher_DrainHonorsContext(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(senderFunc(func(_ []statement.Statement, done func(error)) {
		go func() {
			<-block
			done(nil)
		}()
	}), WithLogger(logger.Discard()))
	d.Enable()
	d.Dispatch(testStatement())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Drain(ctx), context.DeadlineExceeded)

	close(block)
	drain(t, d)
}

type senderFunc func([]statement.Statement, func(error))

func (f senderFunc) SendStatements(sts []statement.Statement, done func(error)) { f(sts, done) }
