package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrs "errors"
	"strings"

	"altscope/internal/modkit/repokit"
)

// Repo persists cached analysis results
type Repo interface {
	ReplaceUserStats(ctx context.Context, channel, filterKey string, stats []UserStat) error
	ReplaceGroups(ctx context.Context, channel, filterKey string, groups []GroupView) error
	UserStats(ctx context.Context, channel, filterKey string) ([]UserStat, error)
	UserStat(ctx context.Context, channel, filterKey, username string) (UserStat, bool, error)
	Groups(ctx context.Context, channel, filterKey string) ([]GroupView, error)
	UpsertStatus(ctx context.Context, st Status) error
	Status(ctx context.Context, channel string) (Status, bool, error)
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

// ReplaceUserStats deletes then rewrites the cache rows for the key; partial
// merges would leak stale group membership across runs
func (r *queries) ReplaceUserStats(ctx context.Context, channel, filterKey string, stats []UserStat) error {
	if _, err := r.q.Exec(ctx,
		`delete from user_stats where channel = ? and date_filter_key = ?`, channel, filterKey); err != nil {
		return err
	}
	for _, st := range stats {
		similar, err := json.Marshal(st.SimilarUsers)
		if err != nil {
			return err
		}
		_, err = r.q.Exec(ctx, `
insert into user_stats (channel, date_filter_key, username, chat_count, alt_likelihood, similar_users, last_updated)
values (?, ?, ?, ?, ?, ?, ?)`,
			channel, filterKey, st.Username, st.ChatCount, st.AltLikelihood, string(similar), st.LastUpdated)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplaceGroups deletes then rewrites the group rows for the key
func (r *queries) ReplaceGroups(ctx context.Context, channel, filterKey string, groups []GroupView) error {
	if _, err := r.q.Exec(ctx,
		`delete from similarity_groups where channel = ? and date_filter_key = ?`, channel, filterKey); err != nil {
		return err
	}
	for _, g := range groups {
		_, err := r.q.Exec(ctx, `
insert into similarity_groups (channel, date_filter_key, group_id, members, max_similarity)
values (?, ?, ?, ?, ?)`,
			channel, filterKey, g.GroupID, strings.Join(g.Members, ","), g.MaxSimilarity)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *queries) UserStats(ctx context.Context, channel, filterKey string) ([]UserStat, error) {
	rows, err := r.q.Query(ctx, `
select username, chat_count, alt_likelihood, similar_users, last_updated
from user_stats
where channel = ? and date_filter_key = ?
order by alt_likelihood desc, chat_count desc, username asc`, channel, filterKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserStat
	for rows.Next() {
		st, err := scanStat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *queries) UserStat(ctx context.Context, channel, filterKey, username string) (UserStat, bool, error) {
	rows, err := r.q.Query(ctx, `
select username, chat_count, alt_likelihood, similar_users, last_updated
from user_stats
where channel = ? and date_filter_key = ? and username = ?`, channel, filterKey, username)
	if err != nil {
		return UserStat{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return UserStat{}, false, rows.Err()
	}
	st, err := scanStat(rows)
	if err != nil {
		return UserStat{}, false, err
	}
	return st, true, rows.Err()
}

func (r *queries) Groups(ctx context.Context, channel, filterKey string) ([]GroupView, error) {
	rows, err := r.q.Query(ctx, `
select group_id, members, max_similarity
from similarity_groups
where channel = ? and date_filter_key = ?
order by group_id asc`, channel, filterKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GroupView
	for rows.Next() {
		var g GroupView
		var members string
		if err := rows.Scan(&g.GroupID, &members, &g.MaxSimilarity); err != nil {
			return nil, err
		}
		if members != "" {
			g.Members = strings.Split(members, ",")
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *queries) UpsertStatus(ctx context.Context, st Status) error {
	_, err := r.q.Exec(ctx, `
insert into analytics_status (channel, last_processed_date, total_messages, updated_at)
values (?, ?, ?, ?)
on conflict (channel) do update set
  last_processed_date = excluded.last_processed_date,
  total_messages = excluded.total_messages,
  updated_at = excluded.updated_at`,
		st.Channel, st.LastProcessedDate, st.TotalMessages, st.UpdatedAt)
	return err
}

func (r *queries) Status(ctx context.Context, channel string) (Status, bool, error) {
	st := Status{Channel: channel}
	err := r.q.QueryRow(ctx, `
select last_processed_date, total_messages, updated_at
from analytics_status
where channel = ?`, channel).Scan(&st.LastProcessedDate, &st.TotalMessages, &st.UpdatedAt)
	if err != nil {
		if stderrs.Is(err, sql.ErrNoRows) {
			return Status{Channel: channel}, false, nil
		}
		return Status{}, false, err
	}
	return st, true, nil
}

func scanStat(rows repokit.Rows) (UserStat, error) {
	var st UserStat
	var similar string
	if err := rows.Scan(&st.Username, &st.ChatCount, &st.AltLikelihood, &similar, &st.LastUpdated); err != nil {
		return UserStat{}, err
	}
	if err := json.Unmarshal([]byte(similar), &st.SimilarUsers); err != nil {
		return UserStat{}, err
	}
	return st, nil
}
