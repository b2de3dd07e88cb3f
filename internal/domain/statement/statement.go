// Package statement contains the xAPI statement model produced by the
// interceptor and the ports it is delivered and recorded through.
package statement

import (
	"errors"
	"time"
)

// ErrUnknownVerb is returned when a verb name is not in the vocabulary.
var ErrUnknownVerb = errors.New("unknown verb")

// Statement is one xAPI statement built from an intercepted SCORM call.
type Statement struct {
	// ID is empty until the statement is dispatched.
	ID        string    `json:"id,omitempty"`
	Actor     Actor     `json:"actor"`
	Verb      Verb      `json:"verb"`
	Object    Activity  `json:"object"`
	Context   Context   `json:"context"`
	Timestamp time.Time `json:"timestamp"`
}

// Actor is the learner the statement is about.
type Actor struct {
	// ID is a mailbox IRI, e.g. "mailto:learner@example.com".
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Verb is a vocabulary entry.
type Verb struct {
	// Name is the short vocabulary key, e.g. "completed".
	Name string `json:"name"`

	// ID is the verb IRI.
	ID string `json:"id"`

	// Display maps language tags to labels.
	Display map[string]string `json:"display,omitempty"`
}

// Activity is the statement object.
type Activity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Context carries the raw SCORM call as extensions.
type Context struct {
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Extension returns the string extension stored under key.
func (c Context) Extension(key string) string {
	if v, ok := c.Extensions[key].(string); ok {
		return v
	}
	return ""
}

// Vocabulary resolves verb names.
type Vocabulary interface {
	// Verb returns the verb registered under name.
	Verb(name string) (Verb, bool)

	// Names returns every registered name in sorted order.
	Names() []string
}

// TransportConfig is the connection configuration applied to a Sender.
// Either User/Password or Auth is set, never both.
type TransportConfig struct {
	Endpoint string
	User     string
	Password string

	// Auth is a complete Authorization header value, e.g. "Basic dXNlcjpwYXNz".
	Auth string
}

// Configurer accepts transport configuration.
type Configurer interface {
	ChangeConfig(cfg TransportConfig)
}

// Sender submits statements without blocking the caller. done is invoked
// exactly once, from another goroutine, when the attempt completes.
type Sender interface {
	SendStatements(statements []Statement, done func(err error))
}
