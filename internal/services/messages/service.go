package messages

import (
	"context"
	"time"

	"altscope/internal/core/datefilter"
	"altscope/internal/modkit"
	"altscope/internal/modkit/repokit"
	perr "altscope/internal/platform/errors"
	"altscope/internal/platform/logger"
)

// Service exposes the event store to the rest of the system
type Service struct {
	db     repokit.TxRunner
	binder repokit.Binder[Repo]
	log    *logger.Logger
}

// NewService builds the messages service from shared deps
func NewService(d modkit.Deps) *Service {
	return &Service{
		db:     d.MustDB(),
		binder: NewSQLite(),
		log:    d.Log,
	}
}

// Append stores a batch of events inside the caller's transaction,
// ignoring rows already present, and returns the number inserted
func (s *Service) Append(ctx context.Context, q repokit.Queryer, events []Event) (int64, error) {
	n, err := s.binder.Bind(q).InsertBatch(ctx, events)
	if err != nil {
		return n, perr.FromSQLite(err, "append events")
	}
	return n, nil
}

// Channels lists every channel that has at least one stored event
func (s *Service) Channels(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.binder.Bind(q).Channels(ctx)
		return err
	})
	if err != nil {
		return nil, perr.FromSQLite(err, "list channels")
	}
	return out, nil
}

// ChannelExists reports whether a channel has any stored events
func (s *Service) ChannelExists(ctx context.Context, channel string) (bool, error) {
	var ok bool
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		ok, err = s.binder.Bind(q).ChannelExists(ctx, channel)
		return err
	})
	if err != nil {
		return false, perr.FromSQLitef(err, "check channel %q", channel)
	}
	return ok, nil
}

// Users lists the distinct usernames active in a channel under the filter
func (s *Service) Users(ctx context.Context, channel string, f datefilter.Filter) ([]string, error) {
	var out []string
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.binder.Bind(q).DistinctUsers(ctx, channel, f)
		return err
	})
	if err != nil {
		return nil, perr.FromSQLitef(err, "list users for %q", channel)
	}
	return out, nil
}

// AvailableDates lists the distinct log dates stored for a channel, ascending
func (s *Service) AvailableDates(ctx context.Context, channel string) ([]string, error) {
	var out []string
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.binder.Bind(q).AvailableDates(ctx, channel)
		return err
	})
	if err != nil {
		return nil, perr.FromSQLitef(err, "list dates for %q", channel)
	}
	return out, nil
}

// CorpusFrom builds the per-user analysis material with a single ordered
// scan of the caller's transaction, so messages, timestamps, and counts all
// come from the same snapshot
func (s *Service) CorpusFrom(
	ctx context.Context, q repokit.Queryer, channel string, f datefilter.Filter,
) (Corpus, error) {
	events, err := s.binder.Bind(q).EventsByChannel(ctx, channel, f)
	if err != nil {
		return Corpus{}, perr.FromSQLitef(err, "load corpus for %q", channel)
	}
	c := Corpus{
		Messages:   make(map[string][]string),
		Timestamps: make(map[string][]time.Time),
		Counts:     make(map[string]int),
	}
	for _, e := range events {
		c.Messages[e.Username] = append(c.Messages[e.Username], e.Message)
		c.Timestamps[e.Username] = append(c.Timestamps[e.Username], e.TS)
		c.Counts[e.Username]++
	}
	return c, nil
}

// UserMessages returns one page of a user's messages, newest first, plus the
// total matching count for pagination. Runs in the caller's transaction so a
// detail view reads messages, counts, and activity from one snapshot
func (s *Service) UserMessages(
	ctx context.Context, q repokit.Queryer, channel, username string, f datefilter.Filter, page, pageSize int,
) ([]Event, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	events, total, err := s.binder.Bind(q).UserMessagesPage(ctx, channel, username, f, pageSize, offset)
	if err != nil {
		return nil, 0, perr.FromSQLitef(err, "page messages for %q in %q", username, channel)
	}
	return events, total, nil
}

// UserActivity returns the per-day message counts for one user, in the
// caller's transaction
func (s *Service) UserActivity(
	ctx context.Context, q repokit.Queryer, channel, username string, f datefilter.Filter,
) ([]DayActivity, error) {
	out, err := s.binder.Bind(q).UserActivityByDay(ctx, channel, username, f)
	if err != nil {
		return nil, perr.FromSQLitef(err, "activity for %q in %q", username, channel)
	}
	return out, nil
}

// ChannelTotals returns the stored message count and date range for a channel
func (s *Service) ChannelTotals(ctx context.Context, channel string) (total int, start, end string, err error) {
	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		var err error
		if total, err = r.TotalMessages(ctx, channel); err != nil {
			return err
		}
		start, end, err = r.DateRange(ctx, channel)
		return err
	})
	if err != nil {
		return 0, "", "", perr.FromSQLitef(err, "totals for %q", channel)
	}
	return total, start, end, nil
}
