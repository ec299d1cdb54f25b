package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations. The sessions
// table is a flat mirror of the in-memory session record; the bounded
// collections (interaction log, follow-up history, fingerprints) are
// stored as JSON columns since the mirror never queries inside them.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions",
		SQL: `
			CREATE TABLE sessions (
				contact           TEXT PRIMARY KEY,
				stage             TEXT NOT NULL,
				buying_intent     INTEGER NOT NULL DEFAULT 0,
				tags              TEXT NOT NULL DEFAULT '[]',
				interaction_log   TEXT NOT NULL DEFAULT '[]',
				followup_history  TEXT NOT NULL DEFAULT '[]',
				followup_total    INTEGER NOT NULL DEFAULT 0,
				last_interaction  TEXT NOT NULL DEFAULT '',
				last_followup     TEXT,
				sent_hashes       TEXT NOT NULL DEFAULT '[]',
				pending_task_id   TEXT NOT NULL DEFAULT '',
				last_human_chat   TEXT,
				created_at        TEXT NOT NULL,
				updated_at        TEXT NOT NULL
			);

			CREATE INDEX idx_sessions_stage ON sessions (stage);
			CREATE INDEX idx_sessions_updated ON sessions (updated_at);
		`,
	},
}
