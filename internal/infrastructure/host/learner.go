package host

import (
	"sort"
	"sync"

	"github.com/alem-hub/scorm-interceptor/internal/domain/scorm"
)

// StaticLearner is a learner API object with fixed values.
type StaticLearner struct {
	ID   string `json:"learnerId" yaml:"learnerId"`
	Name string `json:"learnerName" yaml:"learnerName"`
}

// LearnerID implements scorm.LearnerAPI.
func (l StaticLearner) LearnerID() string { return l.ID }

// LearnerName implements scorm.LearnerAPI.
func (l StaticLearner) LearnerName() string { return l.Name }

// Learner identity elements a runtime reads back from its own data model.
const (
	elementStudentID   = "cmi.core.student_id"
	elementStudentName = "cmi.core.student_name"
	elementLearnerID   = "cmi.learner_id"
	elementLearnerName = "cmi.learner_name"
)

// MemoryRuntime is a minimal SCORM runtime that keeps the data model in
// memory. It is what the replay command and the HTTP interface install when
// no real course runtime is attached.
type MemoryRuntime struct {
	mu      sync.RWMutex
	learner StaticLearner
	values  map[string]string
	calls   int
}

// NewMemoryRuntime creates a runtime for learner.
func NewMemoryRuntime(learner StaticLearner) *MemoryRuntime {
	return &MemoryRuntime{
		learner: learner,
		values:  make(map[string]string),
	}
}

// SetValue stores value under element and returns "true", the SCORM success
// string.
func (m *MemoryRuntime) SetValue(element, value string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[element] = value
	m.calls++
	return "true"
}

// GetValue returns the stored value of element, or "" when unset.
func (m *MemoryRuntime) GetValue(element string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[element]
}

// Calls returns how many times SetValue ran.
func (m *MemoryRuntime) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Elements returns the elements written so far in sorted order.
func (m *MemoryRuntime) Elements() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LearnerID prefers an id written by the course over the configured one.
func (m *MemoryRuntime) LearnerID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return firstNonEmpty(m.values[elementLearnerID], m.values[elementStudentID], m.learner.ID)
}

// LearnerName prefers a name written by the course over the configured one.
func (m *MemoryRuntime) LearnerName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return firstNonEmpty(m.values[elementLearnerName], m.values[elementStudentName], m.learner.Name)
}

// Install registers the runtime's SetValue under function and the runtime
// itself as the learner API under api.
func (m *MemoryRuntime) Install(r *Registry, function, api string) {
	r.Define(function, m.SetValue)
	if api != "" {
		r.DefineAPI(api, m)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var (
	_ scorm.LearnerAPI = StaticLearner{}
	_ scorm.LearnerAPI = (*MemoryRuntime)(nil)
)
