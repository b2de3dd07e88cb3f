// Package host provides the in-process stand-in for the page a SCORM course
// runs in: a registry of named tracking functions and learner API objects.
package host

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alem-hub/scorm-interceptor/internal/domain/scorm"
)

// ErrFunctionNotFound is returned by Call when no function is registered
// under the requested name.
var ErrFunctionNotFound = errors.New("host function not found")

// Registry maps names to host functions and learner API objects.
// It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// funcs: name -> current (possibly decorated) function
	funcs map[string]scorm.SetValueFunc

	// apis: name -> learner API object
	apis map[string]scorm.LearnerAPI
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]scorm.SetValueFunc),
		apis:  make(map[string]scorm.LearnerAPI),
	}
}

// Define registers fn under name, replacing whatever was there.
// A nil fn removes the name.
func (r *Registry) Define(name string, fn scorm.SetValueFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fn == nil {
		delete(r.funcs, name)
		return
	}
	r.funcs[name] = fn
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (scorm.SetValueFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[name]
	return fn, ok
}

// Replace swaps the function under name for decorate(current) in a single
// step. It reports false when name is not registered.
func (r *Registry) Replace(name string, decorate func(scorm.SetValueFunc) scorm.SetValueFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.funcs[name]
	if !ok {
		return false
	}
	r.funcs[name] = decorate(current)
	return true
}

// Call invokes the function registered under name. The registry lock is not
// held while the function runs.
func (r *Registry) Call(name, element, value string) (string, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return fn(element, value), nil
}

// Functions returns the registered function names in sorted order.
func (r *Registry) Functions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefineAPI registers a learner API object under name. A nil api removes it.
func (r *Registry) DefineAPI(name string, api scorm.LearnerAPI) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if api == nil {
		delete(r.apis, name)
		return
	}
	r.apis[name] = api
}

// API returns the learner API object registered under name.
func (r *Registry) API(name string) (scorm.LearnerAPI, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	api, ok := r.apis[name]
	return api, ok
}

var (
	_ scorm.FunctionRegistry = (*Registry)(nil)
	_ scorm.APIDirectory     = (*Registry)(nil)
)
