package store

import "context"

// schemaVersion is bumped whenever parsing or analysis changes shape enough
// to require a full re-ingest; a mismatch resets all ingestion cursors
const schemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS events (
    channel      TEXT NOT NULL,
    username     TEXT NOT NULL,
    ts           TEXT NOT NULL,
    log_date     TEXT NOT NULL,
    message      TEXT NOT NULL,
    source_file  TEXT NOT NULL,
    source_line  INTEGER NOT NULL,
    UNIQUE (source_file, source_line)
);

CREATE INDEX IF NOT EXISTS idx_events_channel_date ON events (channel, log_date);
CREATE INDEX IF NOT EXISTS idx_events_channel_user ON events (channel, username);

CREATE TABLE IF NOT EXISTS ingestion_cursors (
    source_file  TEXT PRIMARY KEY,
    channel      TEXT NOT NULL,
    last_line    INTEGER NOT NULL DEFAULT 0,
    file_size    INTEGER NOT NULL DEFAULT 0,
    modified_at  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS user_stats (
    channel          TEXT NOT NULL,
    date_filter_key  TEXT NOT NULL,
    username         TEXT NOT NULL,
    chat_count       INTEGER NOT NULL DEFAULT 0,
    alt_likelihood   REAL NOT NULL DEFAULT 0,
    similar_users    TEXT NOT NULL DEFAULT '[]',
    last_updated     TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (channel, date_filter_key, username)
);

CREATE TABLE IF NOT EXISTS similarity_groups (
    channel          TEXT NOT NULL,
    date_filter_key  TEXT NOT NULL,
    group_id         INTEGER NOT NULL,
    members          TEXT NOT NULL,
    max_similarity   REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (channel, date_filter_key, group_id)
);

CREATE TABLE IF NOT EXISTS analytics_status (
    channel              TEXT PRIMARY KEY,
    last_processed_date  TEXT NOT NULL DEFAULT '',
    total_messages       INTEGER NOT NULL DEFAULT 0,
    updated_at           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS meta (
    key    TEXT PRIMARY KEY,
    value  TEXT NOT NULL
);
`

// Migrate creates the schema and enforces the schema version
// Safe to run on every open
func Migrate(ctx context.Context, q RowQuerier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return err
	}

	var ver string
	err := q.QueryRow(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&ver)
	if err != nil || ver != schemaVersion {
		// force full re-ingest; events stay (idempotent by (file, line)) but
		// cursors restart from zero
		if _, err := q.Exec(ctx, `UPDATE ingestion_cursors SET last_line = 0, file_size = 0, modified_at = ''`); err != nil {
			return err
		}
		if _, err := q.Exec(ctx,
			`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, schemaVersion); err != nil {
			return err
		}
	}
	return nil
}
