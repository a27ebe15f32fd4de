package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"altscope/internal/platform/logger"

	_ "modernc.org/sqlite"
)

// sqliteClient wraps database/sql over the modernc driver and implements
// RowQuerier + TxRunner
type sqliteClient struct {
	db     *sql.DB
	log    logger.Logger
	logSQL bool
}

// openSQLite opens the database file, applies pragmas via the DSN so every
// pooled connection gets them, and runs migrations
func openSQLite(ctx context.Context, cfg SQLiteConfig, s *Store) (*sqliteClient, error) {
	cfg = cfg.withDefaults()

	dsn, memory := sqliteDSN(cfg)
	if !memory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if memory {
		// a second pooled connection would see a different empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	c := &sqliteClient{db: db, log: s.Log, logSQL: cfg.LogSQL}

	if err := c.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(ctx, c); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return c, nil
}

// sqliteDSN builds a file DSN with per-connection pragmas
func sqliteDSN(cfg SQLiteConfig) (dsn string, memory bool) {
	if cfg.Path == ":memory:" {
		return ":memory:", true
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeoutMs))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + cfg.Path + "?" + q.Encode(), false
}

func (c *sqliteClient) Ping(ctx context.Context) error {
	var one int
	return c.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (c *sqliteClient) Close() error { return c.db.Close() }

func (c *sqliteClient) Exec(ctx context.Context, sqlText string, args ...any) (CommandTag, error) {
	start := time.Now()
	res, err := c.db.ExecContext(ctx, sqlText, args...)
	c.emit(sqlText, start, err)
	if err != nil {
		return tag{}, err
	}
	n, _ := res.RowsAffected()
	return tag{rows: n}, nil
}

func (c *sqliteClient) Query(ctx context.Context, sqlText string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := c.db.QueryContext(ctx, sqlText, args...)
	c.emit(sqlText, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

func (c *sqliteClient) QueryRow(ctx context.Context, sqlText string, args ...any) Row {
	start := time.Now()
	r := c.db.QueryRowContext(ctx, sqlText, args...)
	return row{r: r, after: func(scanErr error) { c.emit(sqlText, start, scanErr) }}
}

func (c *sqliteClient) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	q := txQuerier{tx: tx, parent: c}
	if err := fn(q); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// emit logs a statement when LogSQL is on
func (c *sqliteClient) emit(sqlText string, start time.Time, err error) {
	if !c.logSQL {
		return
	}
	evt := c.log.Debug()
	if err != nil && err != sql.ErrNoRows {
		evt = c.log.Warn().Err(err)
	}
	evt.Str("sql", sqlText).Dur("elapsed", time.Since(start)).Msg("sqlite query")
}

// txQuerier runs statements inside an open transaction
type txQuerier struct {
	tx     *sql.Tx
	parent *sqliteClient
}

func (t txQuerier) Exec(ctx context.Context, sqlText string, args ...any) (CommandTag, error) {
	start := time.Now()
	res, err := t.tx.ExecContext(ctx, sqlText, args...)
	t.parent.emit(sqlText, start, err)
	if err != nil {
		return tag{}, err
	}
	n, _ := res.RowsAffected()
	return tag{rows: n}, nil
}

func (t txQuerier) Query(ctx context.Context, sqlText string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := t.tx.QueryContext(ctx, sqlText, args...)
	t.parent.emit(sqlText, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

func (t txQuerier) QueryRow(ctx context.Context, sqlText string, args ...any) Row {
	start := time.Now()
	r := t.tx.QueryRowContext(ctx, sqlText, args...)
	return row{r: r, after: func(scanErr error) { t.parent.emit(sqlText, start, scanErr) }}
}

// adapters for database/sql to our tiny Row/Rows/CommandTag

type row struct {
	r     *sql.Row
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct{ r *sql.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { _ = x.r.Close() }
func (x rows) Columns() []string {
	cols, err := x.r.Columns()
	if err != nil {
		return nil
	}
	return cols
}

type tag struct{ rows int64 }

func (t tag) String() string      { return fmt.Sprintf("rows affected %d", t.rows) }
func (t tag) RowsAffected() int64 { return t.rows }
