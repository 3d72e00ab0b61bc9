package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	due_unix   INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'completed')),
	raw_data   TEXT NOT NULL,
	fetched_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	kind       TEXT NOT NULL CHECK(kind IN ('message', 'announcement')),
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	read       INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_due_unix ON tasks(due_unix);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_notifications_position ON notifications(position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS confirmations (
	id               TEXT PRIMARY KEY,
	kind             TEXT NOT NULL CHECK(kind IN ('mark_read', 'mark_all_read')),
	notification_ids TEXT NOT NULL DEFAULT '[]',
	state            TEXT NOT NULL DEFAULT 'pending' CHECK(state IN ('pending', 'confirmed', 'reverted')),
	error            TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	resolved_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_confirmations_state ON confirmations(state);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
