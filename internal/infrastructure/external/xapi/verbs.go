package xapi

import (
	"sort"

	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
)

const (
	adlVerbs  = "http://adlnet.gov/expapi/verbs/"
	w3idVerbs = "https://w3id.org/xapi/adl/verbs/"
)

// adlVerbSet is the ADL verb list: name, IRI base and en-US label.
var adlVerbSet = []struct {
	name, base, label string
}{
	{"abandoned", w3idVerbs, "abandoned"},
	{"answered", adlVerbs, "answered"},
	{"asked", adlVerbs, "asked"},
	{"attempted", adlVerbs, "attempted"},
	{"attended", adlVerbs, "attended"},
	{"commented", adlVerbs, "commented"},
	{"completed", adlVerbs, "completed"},
	{"exited", adlVerbs, "exited"},
	{"experienced", adlVerbs, "experienced"},
	{"failed", adlVerbs, "failed"},
	{"imported", adlVerbs, "imported"},
	{"initialized", adlVerbs, "initialized"},
	{"interacted", adlVerbs, "interacted"},
	{"launched", adlVerbs, "launched"},
	{"logged-in", w3idVerbs, "logged-in"},
	{"logged-out", w3idVerbs, "logged-out"},
	{"mastered", adlVerbs, "mastered"},
	{"passed", adlVerbs, "passed"},
	{"preferred", adlVerbs, "preferred"},
	{"progressed", adlVerbs, "progressed"},
	{"registered", adlVerbs, "registered"},
	{"responded", adlVerbs, "responded"},
	{"resumed", adlVerbs, "resumed"},
	{"satisfied", w3idVerbs, "satisfied"},
	{"scored", adlVerbs, "scored"},
	{"shared", adlVerbs, "shared"},
	{"suspended", adlVerbs, "suspended"},
	{"terminated", adlVerbs, "terminated"},
	{"voided", adlVerbs, "voided"},
	{"waived", w3idVerbs, "waived"},
}

// Vocabulary is an immutable set of named verbs.
type Vocabulary struct {
	verbs map[string]statement.Verb
	names []string
}

// NewVocabulary builds a vocabulary from verbs keyed by Verb.Name.
func NewVocabulary(verbs ...statement.Verb) *Vocabulary {
	v := &Vocabulary{verbs: make(map[string]statement.Verb, len(verbs))}
	for _, verb := range verbs {
		v.verbs[verb.Name] = verb
	}
	for name := range v.verbs {
		v.names = append(v.names, name)
	}
	sort.Strings(v.names)
	return v
}

// ADLVocabulary returns the ADL verb vocabulary.
func ADLVocabulary() *Vocabulary {
	verbs := make([]statement.Verb, 0, len(adlVerbSet))
	for _, e := range adlVerbSet {
		verbs = append(verbs, statement.Verb{
			Name:    e.name,
			ID:      e.base + e.name,
			Display: map[string]string{"en-US": e.label},
		})
	}
	return NewVocabulary(verbs...)
}

// Verb implements statement.Vocabulary. The returned verb has its own
// Display map.
func (v *Vocabulary) Verb(name string) (statement.Verb, bool) {
	verb, ok := v.verbs[name]
	if !ok {
		return statement.Verb{}, false
	}
	verb.Display = copyLabels(verb.Display)
	return verb, true
}

// Known reports whether name is in the vocabulary.
func (v *Vocabulary) Known(name string) bool {
	_, ok := v.verbs[name]
	return ok
}

// Names implements statement.Vocabulary.
func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

var _ statement.Vocabulary = (*Vocabulary)(nil)
