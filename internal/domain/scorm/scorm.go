// Package scorm describes the host side of the interceptor: the SCORM
// tracking calls it observes and the collaborators it looks them up in.
// It has no dependencies outside the standard library.
package scorm

import "time"

// SetValueFunc is the shape of a host tracking function such as
// SCORM_CallLMSSetValue. The return value is whatever the host reports.
type SetValueFunc func(element, value string) string

// Call is one observed SetValue invocation.
type Call struct {
	// Function is the registry name the call went through.
	Function string

	// Element is the SCORM data model element, e.g. "cmi.core.lesson_status".
	Element string

	// Value is the opaque value written to the element.
	Value string

	// At is when the original function returned.
	At time.Time
}

// LearnerAPI is the learner-facing part of a host SCORM API object.
// Empty strings mean the host has no value.
type LearnerAPI interface {
	LearnerID() string
	LearnerName() string
}

// APIDirectory resolves learner API objects by name.
type APIDirectory interface {
	API(name string) (LearnerAPI, bool)
}

// FunctionRegistry holds host functions by name and lets a caller swap one
// for a decorated version of itself.
type FunctionRegistry interface {
	// Lookup returns the function currently registered under name.
	Lookup(name string) (SetValueFunc, bool)

	// Replace swaps the function under name for decorate(current).
	// It reports false, and changes nothing, when name is not registered.
	Replace(name string, decorate func(SetValueFunc) SetValueFunc) bool
}

// Well-known SCORM 1.2 and 2004 data model elements.
const (
	ElementSuspendData    = "cmi.suspend_data"
	ElementLessonStatus   = "cmi.core.lesson_status"
	ElementLessonLocation = "cmi.core.lesson_location"
	ElementScoreRaw       = "cmi.core.score.raw"
	ElementSessionTime    = "cmi.core.session_time"
	ElementCompletion     = "cmi.completion_status"
	ElementSuccess        = "cmi.success_status"
	ElementScoreScaled    = "cmi.score.scaled"
	ElementLocation       = "cmi.location"
	ElementExit           = "cmi.exit"
)
