// Package xapi implements the xAPI side of the interceptor: the statement wire
// format, the ADL verb vocabulary and an HTTP client for a Learning Record Store.
package xapi

import (
	"fmt"
	"strings"
)

// Version is the xAPI version sent in the X-Experience-API-Version header.
const Version = "1.0.3"

// ══════════════════════════════════════════════════════════════════════════════
// STATEMENT DTOs
// ══════════════════════════════════════════════════════════════════════════════

// StatementDTO is a statement as accepted by POST /statements.
type StatementDTO struct {
	ID        string      `json:"id,omitempty"`
	Actor     AgentDTO    `json:"actor"`
	Verb      VerbDTO     `json:"verb"`
	Object    ActivityDTO `json:"object"`
	Context   *ContextDTO `json:"context,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// AgentDTO identifies the actor by mailbox.
type AgentDTO struct {
	ObjectType string `json:"objectType"`
	Name       string `json:"name,omitempty"`
	Mbox       string `json:"mbox"`
}

// VerbDTO is a verb IRI with language-tagged display labels.
type VerbDTO struct {
	ID      string            `json:"id"`
	Display map[string]string `json:"display,omitempty"`
}

// ActivityDTO is the statement object.
type ActivityDTO struct {
	ObjectType string                 `json:"objectType"`
	ID         string                 `json:"id"`
	Definition *ActivityDefinitionDTO `json:"definition,omitempty"`
}

// ActivityDefinitionDTO holds language maps describing an activity.
type ActivityDefinitionDTO struct {
	Name        map[string]string `json:"name,omitempty"`
	Description map[string]string `json:"description,omitempty"`
}

// ContextDTO carries statement context extensions.
type ContextDTO struct {
	Extensions map[string]any `json:"extensions,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LRS DTOs
// ══════════════════════════════════════════════════════════════════════════════

// AboutDTO is the response of GET /about.
type AboutDTO struct {
	Version    []string       `json:"version"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// StatusError is returned when the LRS answers with a 4xx or 5xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("lrs responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("lrs responded with status %d: %s", e.StatusCode, body)
}
