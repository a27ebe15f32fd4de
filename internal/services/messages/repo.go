package messages

import (
	"context"

	"altscope/internal/core/datefilter"
	"altscope/internal/modkit/repokit"
)

// Repo is the minimal persistence surface for events
type Repo interface {
	InsertBatch(ctx context.Context, events []Event) (int64, error)
	Channels(ctx context.Context) ([]string, error)
	ChannelExists(ctx context.Context, channel string) (bool, error)
	EventsByChannel(ctx context.Context, channel string, f datefilter.Filter) ([]Event, error)
	DistinctUsers(ctx context.Context, channel string, f datefilter.Filter) ([]string, error)
	AvailableDates(ctx context.Context, channel string) ([]string, error)
	TotalMessages(ctx context.Context, channel string) (int, error)
	DateRange(ctx context.Context, channel string) (start, end string, err error)
	UserMessagesPage(ctx context.Context, channel, username string, f datefilter.Filter, limit, offset int) ([]Event, int, error)
	UserActivityByDay(ctx context.Context, channel, username string, f datefilter.Filter) ([]DayActivity, error)
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

// InsertBatch appends events, silently ignoring duplicate (source_file,
// source_line) pairs, and returns the number actually inserted
func (r *queries) InsertBatch(ctx context.Context, events []Event) (int64, error) {
	const sql = `
insert or ignore into events (channel, username, ts, log_date, message, source_file, source_line)
values (?, ?, ?, ?, ?, ?, ?)
`
	var inserted int64
	for _, e := range events {
		tag, err := r.q.Exec(ctx, sql,
			e.Channel, e.Username, e.TS.Format(tsLayout), e.LogDate, e.Message, e.SourceFile, e.SourceLine)
		if err != nil {
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func (r *queries) Channels(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `select distinct channel from events order by channel`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *queries) ChannelExists(ctx context.Context, channel string) (bool, error) {
	var one int
	err := r.q.QueryRow(ctx, `select 1 from events where channel = ? limit 1`, channel).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *queries) EventsByChannel(ctx context.Context, channel string, f datefilter.Filter) ([]Event, error) {
	sql := `
select channel, username, ts, log_date, message, source_file, source_line
from events
where channel = ?`
	args := []any{channel}
	clause, cargs := f.SQL("log_date")
	sql += clause + ` order by ts asc, source_file asc, source_line asc`
	args = append(args, cargs...)

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *queries) DistinctUsers(ctx context.Context, channel string, f datefilter.Filter) ([]string, error) {
	sql := `select distinct username from events where channel = ?`
	args := []any{channel}
	clause, cargs := f.SQL("log_date")
	sql += clause + ` order by username asc`
	args = append(args, cargs...)

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *queries) AvailableDates(ctx context.Context, channel string) ([]string, error) {
	rows, err := r.q.Query(ctx,
		`select distinct log_date from events where channel = ? order by log_date asc`, channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *queries) TotalMessages(ctx context.Context, channel string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `select count(*) from events where channel = ?`, channel).Scan(&n)
	return n, err
}

func (r *queries) DateRange(ctx context.Context, channel string) (string, string, error) {
	var start, end *string
	err := r.q.QueryRow(ctx,
		`select min(log_date), max(log_date) from events where channel = ?`, channel).Scan(&start, &end)
	if err != nil {
		return "", "", err
	}
	if start == nil || end == nil {
		return "", "", nil
	}
	return *start, *end, nil
}

func (r *queries) UserMessagesPage(
	ctx context.Context, channel, username string, f datefilter.Filter, limit, offset int,
) ([]Event, int, error) {
	clause, cargs := f.SQL("log_date")

	countSQL := `select count(*) from events where channel = ? and username = ?` + clause
	countArgs := append([]any{channel, username}, cargs...)
	var total int
	if err := r.q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := `
select channel, username, ts, log_date, message, source_file, source_line
from events
where channel = ? and username = ?` + clause + `
order by ts desc, source_file desc, source_line desc
limit ? offset ?`
	args := append([]any{channel, username}, cargs...)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *queries) UserActivityByDay(
	ctx context.Context, channel, username string, f datefilter.Filter,
) ([]DayActivity, error) {
	clause, cargs := f.SQL("log_date")
	sql := `
select log_date, count(*)
from events
where channel = ? and username = ?` + clause + `
group by log_date
order by log_date asc`
	args := append([]any{channel, username}, cargs...)

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DayActivity
	for rows.Next() {
		var d DayActivity
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanEvent(rows repokit.Rows) (Event, error) {
	var e Event
	var ts string
	if err := rows.Scan(&e.Channel, &e.Username, &ts, &e.LogDate, &e.Message, &e.SourceFile, &e.SourceLine); err != nil {
		return Event{}, err
	}
	e.TS = parseTS(ts)
	return e, nil
}
