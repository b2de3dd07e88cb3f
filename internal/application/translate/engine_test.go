package translate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/domain/scorm"
	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

type fakeVocabulary map[string]string

func (v fakeVocabulary) Verb(name string) (statement.Verb, bool) {
	id, ok := v[name]
	if !ok {
		return statement.Verb{}, false
	}
	return statement.Verb{Name: name, ID: id, Display: map[string]string{"en-US": name}}, true
}

func (v fakeVocabulary) Names() []string { return nil }

var vocab = fakeVocabulary{
	"interacted":  "http://adlnet.gov/expapi/verbs/interacted",
	"completed":   "http://adlnet.gov/expapi/verbs/completed",
	"experienced": "http://adlnet.gov/expapi/verbs/experienced",
}

type fakeLearner struct{ id, name string }

func (l fakeLearner) LearnerID() string   { return l.id }
func (l fakeLearner) LearnerName() string { return l.name }

type fakeAPIs map[string]scorm.LearnerAPI

func (a fakeAPIs) API(name string) (scorm.LearnerAPI, bool) {
	api, ok := a[name]
	return api, ok
}

func resolve(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	cfg, err := config.Resolve(overrides)
	require.NoError(t, err)
	return cfg
}

var epoch = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

func TestTranslate_DefaultConfig(t *testing.T) {
	e := NewEngine(vocab, nil, timeutil.NewManualClock(epoch))
	cfg := config.Default()

	st, err := e.Translate(scorm.Call{Element: "cmi.suspend_data", Value: "abc"}, cfg)
	require.NoError(t, err)

	assert.Empty(t, st.ID)
	assert.Equal(t, "interacted", st.Verb.Name)
	assert.Equal(t, "http://adlnet.gov/expapi/verbs/interacted", st.Verb.ID)
	assert.Equal(t, statement.Actor{ID: "mailto:" + FallbackMailbox, Name: "DEFAULT_AGENT_NAME"}, st.Actor)
	assert.Equal(t, statement.Activity{
		ID:          "http://localhost/course/DEFAULT_COURSE",
		Name:        "Scorm Interception",
		Description: "A scorm value was intercepted",
	}, st.Object)
	assert.Equal(t, map[string]any{
		"http://localhost/element": "cmi.suspend_data",
		"http://localhost/value":   "abc",
	}, st.Context.Extensions)
	assert.Equal(t, epoch, st.Timestamp)
}

func TestVerbName_FallbackChain(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		element   string
		want      string
	}{
		{"mapped element", nil, "cmi.suspend_data", "interacted"},
		{"unmapped uses default verb", map[string]any{
			"xapi": map[string]any{"verbs": map[string]any{"defaultVerb": "experienced"}},
		}, "cmi.core.lesson_location", "experienced"},
		{"custom mapping", map[string]any{
			"xapi": map[string]any{"verbs": map[string]any{"map": map[string]any{"cmi.core.lesson_status": "completed"}}},
		}, "cmi.core.lesson_status", "completed"},
		{"empty default falls back", map[string]any{
			"xapi": map[string]any{"verbs": map[string]any{"defaultVerb": ""}},
		}, "cmi.exit", "interacted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerbName(tt.element, resolve(t, tt.overrides)))
		})
	}
}

func TestTranslate_UnknownVerb(t *testing.T) {
	e := NewEngine(vocab, nil, nil)
	cfg := resolve(t, map[string]any{
		"xapi": map[string]any{"verbs": map[string]any{"defaultVerb": "zapped"}},
	})

	_, err := e.Translate(scorm.Call{Element: "cmi.exit", Value: "suspend"}, cfg)
	assert.ErrorIs(t, err, statement.ErrUnknownVerb)
}

func TestActor_Mailbox(t *testing.T) {
	tests := []struct {
		name     string
		learner  scorm.LearnerAPI
		email    string
		wantID   string
		wantName string
	}{
		{"valid email from host", fakeLearner{"user@example.com", "Ada"}, "", "mailto:user@example.com", "Ada"},
		{"invalid id uses fallback", fakeLearner{"not-an-email", "Ada"}, "", "mailto:" + FallbackMailbox, "Ada"},
		{"invalid id uses configured email", fakeLearner{"12345", ""}, "agent@lms.example.org", "mailto:agent@lms.example.org", "DEFAULT_AGENT_NAME"},
		{"no host api", nil, "", "mailto:" + FallbackMailbox, "DEFAULT_AGENT_NAME"},
		{"empty host values", fakeLearner{"", ""}, "", "mailto:" + FallbackMailbox, "DEFAULT_AGENT_NAME"},
		{"single letter tld accepted", fakeLearner{"user@example.c", "Ada"}, "", "mailto:user@example.c", "Ada"},
		{"bracketed ip literal rejected", fakeLearner{"user@[127.0.0.1]", "Ada"}, "", "mailto:" + FallbackMailbox, "Ada"},
		{"bare host rejected", fakeLearner{"user@localhost", "Ada"}, "", "mailto:" + FallbackMailbox, "Ada"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apis := fakeAPIs{}
			if tt.learner != nil {
				apis["SCORM_objAPI"] = tt.learner
			}
			cfg := resolve(t, map[string]any{
				"xapi": map[string]any{"agent": map[string]any{"defaultAgent": map[string]any{"email": tt.email}}},
			})

			actor := NewEngine(vocab, apis, nil).Actor(cfg)
			assert.Equal(t, tt.wantID, actor.ID)
			assert.Equal(t, tt.wantName, actor.Name)
		})
	}
}

func TestEngine_IsEmail(t *testing.T) {
	e := NewEngine(vocab, nil, nil)

	tests := []struct {
		in   string
		want bool
	}{
		{"user@example.com", true},
		{"first.last+tag@sub.example.org", true},
		{"user@example.c", true},
		{"user@[127.0.0.1]", false},
		{"user@localhost", false},
		{"a@b", false},
		{"not-an-email", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, e.IsEmail(tt.in))
		})
	}
}

func TestActor_DefaultAgentEmailID(t *testing.T) {
	cfg := resolve(t, map[string]any{
		"xapi": map[string]any{"agent": map[string]any{"defaultAgent": map[string]any{"id": "grace@example.com"}}},
	})

	actor := NewEngine(vocab, nil, nil).Actor(cfg)
	assert.Equal(t, "mailto:grace@example.com", actor.ID)
}

func TestActor_APINameFromConfig(t *testing.T) {
	apis := fakeAPIs{"LMS_API": fakeLearner{"lin@example.com", "Lin"}}
	cfg := resolve(t, map[string]any{"scorm": map[string]any{"api": "LMS_API"}})

	actor := NewEngine(vocab, apis, nil).Actor(cfg)
	assert.Equal(t, "mailto:lin@example.com", actor.ID)
	assert.Equal(t, "Lin", actor.Name)
}

func TestTranslate_OriginAndCourse(t *testing.T) {
	cfg := resolve(t, map[string]any{
		"xapi":  map[string]any{"courseName": "Safety101"},
		"scorm": map[string]any{"origin": "https://lms.example.org/"},
	})
	call := scorm.Call{Element: "cmi.core.lesson_status", Value: "passed", At: epoch}

	st, err := NewEngine(vocab, nil, nil).Translate(call, cfg)
	require.NoError(t, err)

	assert.Equal(t, "https://lms.example.org/course/Safety101", st.Object.ID)
	assert.Equal(t, "cmi.core.lesson_status", st.Context.Extension(ElementKey(cfg)))
	assert.Equal(t, "passed", st.Context.Extension(ValueKey(cfg)))
	assert.Equal(t, epoch, st.Timestamp)
}

func TestTranslate_DoesNotMutateConfig(t *testing.T) {
	cfg := config.Default()
	before := *cfg
	beforeMap := map[string]string{}
	for k, v := range cfg.XAPI.Verbs.Map {
		beforeMap[k] = v
	}

	_, err := NewEngine(vocab, nil, nil).Translate(scorm.Call{Element: "cmi.unknown", Value: "x"}, cfg)
	require.NoError(t, err)

	assert.Equal(t, before.XAPI.Agent, cfg.XAPI.Agent)
	assert.Equal(t, before.SCORM, cfg.SCORM)
	assert.Equal(t, beforeMap, cfg.XAPI.Verbs.Map)
}
