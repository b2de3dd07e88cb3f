// Package translate turns an observed SCORM call into an xAPI statement.
package translate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/domain/scorm"
	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// FallbackMailbox is used when neither the learner id nor the configured
	// agent email is a usable mailbox.
	FallbackMailbox = "fromScormInterceptor@riptidesoftware.com"

	// FallbackVerb is used when the configuration names no verb at all.
	FallbackVerb = "interacted"

	// ActivityName and ActivityDescription describe every statement object.
	ActivityName        = "Scorm Interception"
	ActivityDescription = "A scorm value was intercepted"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine builds statements. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	vocab    statement.Vocabulary
	apis     scorm.APIDirectory
	validate *validator.Validate
	clock    timeutil.Clock
}

// NewEngine creates an Engine. apis may be nil, in which case the configured
// default agent is always used.
func NewEngine(vocab statement.Vocabulary, apis scorm.APIDirectory, clock timeutil.Clock) *Engine {
	if clock == nil {
		clock = timeutil.Real()
	}
	return &Engine{
		vocab:    vocab,
		apis:     apis,
		validate: validator.New(),
		clock:    clock,
	}
}

// Translate builds the statement for call. It does not modify cfg.
// The returned statement has no ID; dispatch assigns one.
func (e *Engine) Translate(call scorm.Call, cfg *config.Config) (*statement.Statement, error) {
	verb, err := e.Verb(call.Element, cfg)
	if err != nil {
		return nil, err
	}

	timestamp := call.At
	if timestamp.IsZero() {
		timestamp = e.clock.Now()
	}

	return &statement.Statement{
		Actor:     e.Actor(cfg),
		Verb:      verb,
		Object:    Activity(cfg),
		Context:   Context(call, cfg),
		Timestamp: timestamp,
	}, nil
}

// Actor resolves the learner. Values reported by the host API object win
// over the configured default agent, field by field.
func (e *Engine) Actor(cfg *config.Config) statement.Actor {
	agent := cfg.XAPI.Agent.DefaultAgent
	id, name := agent.ID, agent.Name

	if e.apis != nil {
		if api, ok := e.apis.API(cfg.SCORM.API); ok && api != nil {
			if v := api.LearnerName(); v != "" {
				name = v
			}
			if v := api.LearnerID(); v != "" {
				id = v
			}
		}
	}

	return statement.Actor{
		ID:   "mailto:" + e.mailbox(id, agent.Email),
		Name: name,
	}
}

// mailbox returns id when it is an email address, otherwise the configured
// email, otherwise FallbackMailbox.
func (e *Engine) mailbox(id, configured string) string {
	if e.IsEmail(id) {
		return id
	}
	if configured != "" {
		return configured
	}
	return FallbackMailbox
}

// IsEmail reports whether s is a syntactically valid email address.
func (e *Engine) IsEmail(s string) bool {
	return s != "" && e.validate.Var(s, "email") == nil
}

// Verb resolves the verb for element through the vocabulary.
func (e *Engine) Verb(element string, cfg *config.Config) (statement.Verb, error) {
	name := VerbName(element, cfg)

	verb, ok := e.vocab.Verb(name)
	if !ok {
		return statement.Verb{}, fmt.Errorf("%w: %q for element %q", statement.ErrUnknownVerb, name, element)
	}
	return verb, nil
}

// VerbName applies the lookup chain: verbs.map[element], then
// verbs.defaultVerb, then FallbackVerb.
func VerbName(element string, cfg *config.Config) string {
	if name := cfg.XAPI.Verbs.Map[element]; name != "" {
		return name
	}
	if name := cfg.XAPI.Verbs.DefaultVerb; name != "" {
		return name
	}
	return FallbackVerb
}

// Activity returns the course-level statement object.
func Activity(cfg *config.Config) statement.Activity {
	return statement.Activity{
		ID:          origin(cfg) + "/course/" + cfg.XAPI.CourseName,
		Name:        ActivityName,
		Description: ActivityDescription,
	}
}

// Context carries the raw element and value as extensions keyed under the
// origin.
func Context(call scorm.Call, cfg *config.Config) statement.Context {
	return statement.Context{
		Extensions: map[string]any{
			ElementKey(cfg): call.Element,
			ValueKey(cfg):   call.Value,
		},
	}
}

// ElementKey returns the extension key holding the SCORM element.
func ElementKey(cfg *config.Config) string { return origin(cfg) + "/element" }

// ValueKey returns the extension key holding the SCORM value.
func ValueKey(cfg *config.Config) string { return origin(cfg) + "/value" }

func origin(cfg *config.Config) string {
	return strings.TrimRight(cfg.SCORM.Origin, "/")
}
