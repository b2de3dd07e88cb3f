package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STATEMENT JOURNAL
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS statement_journal (
    id BIGSERIAL PRIMARY KEY,
    statement_id UUID NOT NULL,
    verb VARCHAR(64) NOT NULL,
    actor TEXT NOT NULL,
    outcome VARCHAR(10) NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    statement JSONB NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_outcome CHECK (outcome IN ('sent', 'failed'))
);

CREATE INDEX IF NOT EXISTS idx_statement_journal_recorded_at ON statement_journal(recorded_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_statement_journal_failed ON statement_journal(recorded_at DESC) WHERE outcome = 'failed';
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: INDEX STATEMENT IDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE INDEX IF NOT EXISTS idx_statement_journal_statement_id ON statement_journal(statement_id);
`

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_statement_journal",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "index_statement_ids",
			UpSQL:   migration002Up,
		},
	}
}
