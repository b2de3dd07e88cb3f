package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/application/intercept"
	"github.com/alem-hub/scorm-interceptor/internal/application/translate"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/host"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/scorm-interceptor/pkg/interceptor"
)

// Trace is a recorded SCORM session.
type Trace struct {
	// Learner is what the runtime reports through its API object.
	Learner host.StaticLearner `yaml:"learner"`

	// Config overrides the interceptor configuration for this replay.
	Config map[string]any `yaml:"config"`

	// Calls are replayed in order through the tracking function.
	Calls []TraceCall `yaml:"calls"`
}

// TraceCall is one recorded SetValue call.
type TraceCall struct {
	Element string `yaml:"element"`
	Value   string `yaml:"value"`
}

// ReplayResult is printed when a replay finishes.
type ReplayResult struct {
	Function   string            `yaml:"function"`
	State      string            `yaml:"state"`
	Calls      int               `yaml:"calls"`
	LRSEnabled bool              `yaml:"lrsEnabled"`
	Elements   map[string]string `yaml:"elements"`
	Journal    []JournalLine     `yaml:"journal,omitempty"`
}

// JournalLine is the printed form of a journal entry.
type JournalLine struct {
	ID      string `yaml:"id"`
	Verb    string `yaml:"verb"`
	Element string `yaml:"element"`
	Outcome string `yaml:"outcome"`
	Error   string `yaml:"error,omitempty"`
}

var replayCmd = &cobra.Command{
	Use:   "replay TRACE",
	Short: "Replay a recorded SCORM trace through the interceptor",
	Long: `Feeds the calls of a YAML trace through an in-memory SCORM runtime with the
interceptor attached, then prints the runtime state and the statement journal.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Duration("timeout", 30*time.Second, "Time allowed for discovery and delivery")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadService()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg, cmd.ErrOrStderr())

	base, err := loadOverrides(cmd, cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	trace, err := ParseTrace(f)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	result, err := Replay(ctx, trace, base, interceptor.WithLogger(log))
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(result)
}

// ParseTrace decodes a YAML trace.
func ParseTrace(r io.Reader) (*Trace, error) {
	var trace Trace
	if err := yaml.NewDecoder(r).Decode(&trace); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	if len(trace.Calls) == 0 {
		return nil, errors.New("trace has no calls")
	}
	for i, c := range trace.Calls {
		if c.Element == "" {
			return nil, fmt.Errorf("trace call %d has no element", i+1)
		}
	}
	return &trace, nil
}

// Replay runs trace against a fresh runtime. base is merged under the
// trace's own configuration.
func Replay(ctx context.Context, trace *Trace, base map[string]any, opts ...interceptor.Option) (*ReplayResult, error) {
	registry := host.NewRegistry()
	j := memory.NewJournal(memory.DefaultSize)

	ic := interceptor.New(registry, append([]interceptor.Option{interceptor.WithJournal(j)}, opts...)...)
	defer ic.Close()

	if err := ic.Init(config.Overrides(base, trace.Config)); err != nil {
		return nil, err
	}
	rc := ic.Config()

	runtime := host.NewMemoryRuntime(trace.Learner)
	runtime.Install(registry, rc.SCORM.SetValueFunction, rc.SCORM.API)

	session := ic.Session()
	select {
	case <-session.Done():
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for discovery: %w", ctx.Err())
	}
	if state := session.State(); state != intercept.StateIntercepted {
		return nil, fmt.Errorf("tracking function %s was not intercepted: %s", session.Function(), state)
	}

	for _, c := range trace.Calls {
		if _, err := registry.Call(rc.SCORM.SetValueFunction, c.Element, c.Value); err != nil {
			return nil, err
		}
	}

	if err := ic.Drain(ctx); err != nil {
		return nil, fmt.Errorf("waiting for delivery: %w", err)
	}

	result := &ReplayResult{
		Function:   session.Function(),
		State:      session.State().String(),
		Calls:      runtime.Calls(),
		LRSEnabled: ic.LRSEnabled(),
		Elements:   make(map[string]string),
	}
	for _, el := range runtime.Elements() {
		result.Elements[el] = runtime.GetValue(el)
	}

	entries, err := j.Recent(ctx, len(trace.Calls))
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		result.Journal = append(result.Journal, JournalLine{
			ID:      e.Statement.ID,
			Verb:    e.Statement.Verb.Name,
			Element: e.Statement.Context.Extension(translate.ElementKey(rc)),
			Outcome: string(e.Outcome),
			Error:   e.Error,
		})
	}

	return result, nil
}
