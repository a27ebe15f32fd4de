package ingest

import (
	"context"

	"altscope/internal/modkit/repokit"
)

// Repo persists ingestion cursors
type Repo interface {
	Cursor(ctx context.Context, sourceFile string) (Cursor, error)
	UpsertCursor(ctx context.Context, c Cursor) error
}

type (
	// SQLite is a binder that can bind the repo to a Queryer or TxRunner
	SQLite struct{}
	// queries implements the Repo interface
	queries struct{ q repokit.Queryer }
)

// NewSQLite returns a binder that can bind the repo to a Queryer or TxRunner
func NewSQLite() repokit.Binder[Repo] { return SQLite{} }

// Bind wires a Queryer to the repo
func (SQLite) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// Cursor loads the cursor for a source file, returning a zero cursor on
// first sight
func (r *queries) Cursor(ctx context.Context, sourceFile string) (Cursor, error) {
	c := Cursor{SourceFile: sourceFile}
	err := r.q.QueryRow(ctx, `
select channel, last_line, file_size, modified_at
from ingestion_cursors
where source_file = ?`, sourceFile).Scan(&c.Channel, &c.LastLine, &c.FileSize, &c.ModifiedAt)
	if err != nil {
		if isNoRows(err) {
			return Cursor{SourceFile: sourceFile}, nil
		}
		return Cursor{}, err
	}
	return c, nil
}

// UpsertCursor advances the cursor; callers run this in the same transaction
// as the event batch so a crash cannot split the two
func (r *queries) UpsertCursor(ctx context.Context, c Cursor) error {
	_, err := r.q.Exec(ctx, `
insert into ingestion_cursors (source_file, channel, last_line, file_size, modified_at)
values (?, ?, ?, ?, ?)
on conflict (source_file) do update set
  channel = excluded.channel,
  last_line = excluded.last_line,
  file_size = excluded.file_size,
  modified_at = excluded.modified_at`,
		c.SourceFile, c.Channel, c.LastLine, c.FileSize, c.ModifiedAt)
	return err
}
