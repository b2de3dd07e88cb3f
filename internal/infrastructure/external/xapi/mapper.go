package xapi

import (
	"time"

	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
)

// Language tag used for activity names and descriptions.
const defaultLanguage = "en-US"

// StatementToDTO converts a domain statement to its wire form.
func StatementToDTO(st statement.Statement) StatementDTO {
	dto := StatementDTO{
		ID: st.ID,
		Actor: AgentDTO{
			ObjectType: "Agent",
			Name:       st.Actor.Name,
			Mbox:       st.Actor.ID,
		},
		Verb: VerbDTO{
			ID:      st.Verb.ID,
			Display: copyLabels(st.Verb.Display),
		},
		Object: ActivityDTO{
			ObjectType: "Activity",
			ID:         st.Object.ID,
		},
	}

	if st.Object.Name != "" || st.Object.Description != "" {
		def := &ActivityDefinitionDTO{}
		if st.Object.Name != "" {
			def.Name = map[string]string{defaultLanguage: st.Object.Name}
		}
		if st.Object.Description != "" {
			def.Description = map[string]string{defaultLanguage: st.Object.Description}
		}
		dto.Object.Definition = def
	}

	if len(st.Context.Extensions) > 0 {
		ext := make(map[string]any, len(st.Context.Extensions))
		for k, v := range st.Context.Extensions {
			ext[k] = v
		}
		dto.Context = &ContextDTO{Extensions: ext}
	}

	if !st.Timestamp.IsZero() {
		dto.Timestamp = st.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	return dto
}

// StatementsToDTO converts a batch.
func StatementsToDTO(statements []statement.Statement) []StatementDTO {
	out := make([]StatementDTO, len(statements))
	for i, st := range statements {
		out[i] = StatementToDTO(st)
	}
	return out
}

func copyLabels(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
