package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"altscope/internal/core/datefilter"
	"altscope/internal/modkit"
	"altscope/internal/modkit/repokit"
	perr "altscope/internal/platform/errors"
	"altscope/internal/platform/logger"
	"altscope/internal/services/analytics"
	"altscope/internal/services/ingest"
	"altscope/internal/services/messages"
)

// Service owns the per-channel busy flags and sequences ingestion, analysis,
// and cache refresh
type Service struct {
	db        repokit.TxRunner
	messages  *messages.Service
	ingest    *ingest.Service
	analytics *analytics.Service
	log       *logger.Logger

	mu   sync.Mutex
	busy map[string]bool
}

// NewService builds the orchestrator from its collaborating services
func NewService(d modkit.Deps, msgs *messages.Service, ing *ingest.Service, an *analytics.Service) *Service {
	return &Service{
		db:        d.MustDB(),
		messages:  msgs,
		ingest:    ing,
		analytics: an,
		log:       d.Log,
		busy:      make(map[string]bool),
	}
}

// tryAcquire atomically sets the busy flag for a channel
func (s *Service) tryAcquire(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[channel] {
		return false
	}
	s.busy[channel] = true
	return true
}

func (s *Service) release(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, channel)
}

// RunOnce ingests new transcript lines and recomputes the cached unfiltered
// analysis. With a channel it processes just that channel and returns a
// conflict error if a run is already in progress; with an empty channel it
// processes every discovered channel, silently skipping busy ones
func (s *Service) RunOnce(ctx context.Context, channel string) (ProcessingSummary, error) {
	var summary ProcessingSummary

	if channel != "" {
		if !s.tryAcquire(channel) {
			return summary, perr.Conflictf("processing already in progress for channel %q", channel)
		}
		defer s.release(channel)

		cs, err := s.processChannel(ctx, channel)
		if err != nil {
			return summary, err
		}
		summary.Channels = append(summary.Channels, cs)
		summary.add(cs)
		return summary, nil
	}

	channels, err := s.discoverChannels(ctx)
	if err != nil {
		return summary, err
	}
	for _, ch := range channels {
		if !s.tryAcquire(ch) {
			s.log.Debug().Str("channel", ch).Msg("channel busy, skipping this pass")
			summary.Channels = append(summary.Channels, ChannelSummary{Channel: ch, Skipped: true})
			continue
		}
		cs, err := s.processChannel(ctx, ch)
		s.release(ch)
		if err != nil {
			return summary, err
		}
		summary.Channels = append(summary.Channels, cs)
		summary.add(cs)
	}
	return summary, nil
}

func (ps *ProcessingSummary) add(cs ChannelSummary) {
	ps.FilesScanned += cs.FilesScanned
	ps.NewLines += cs.NewLines
	ps.ParseFailures += cs.ParseFailures
	ps.UsersAffected += cs.UsersAffected
}

// processChannel runs ingestion for one channel's files, then recomputes the
// unfiltered analysis inside a single transaction so readers never see a
// half-refreshed cache
func (s *Service) processChannel(ctx context.Context, channel string) (ChannelSummary, error) {
	started := time.Now()
	cs := ChannelSummary{Channel: channel}

	results, err := s.ingest.Run(ctx, channel)
	if err != nil {
		return cs, err
	}
	users := make(map[string]struct{})
	for _, r := range results {
		cs.FilesScanned++
		cs.NewLines += r.NewLines
		cs.ParseFailures += r.ParseFailures
		for u := range r.Users {
			users[u] = struct{}{}
		}
	}
	cs.UsersAffected = len(users)

	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		corpus, err := s.messages.CorpusFrom(ctx, q, channel, datefilter.All())
		if err != nil {
			return err
		}
		_, err = s.analytics.Recompute(ctx, q, channel, corpus, lastDateOf(corpus))
		return err
	})
	if err != nil {
		return cs, err
	}

	s.log.Info().
		Str("channel", channel).
		Int("files", cs.FilesScanned).
		Int64("new_lines", cs.NewLines).
		Int("parse_failures", cs.ParseFailures).
		Int("users", cs.UsersAffected).
		Dur("elapsed", time.Since(started)).
		Msg("channel processed")
	return cs, nil
}

// lastDateOf finds the most recent log date present in the corpus
func lastDateOf(c messages.Corpus) string {
	var last time.Time
	for _, ts := range c.Timestamps {
		for _, t := range ts {
			if t.After(last) {
				last = t
			}
		}
	}
	if last.IsZero() {
		return ""
	}
	return last.Format("2006-01-02")
}

// discoverChannels merges channels seen on disk with channels already stored
func (s *Service) discoverChannels(ctx context.Context) ([]string, error) {
	stored, err := s.messages.Channels(ctx)
	if err != nil {
		return nil, err
	}
	files, err := s.ingest.Scan("")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, ch := range stored {
		if !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	for _, f := range files {
		if !seen[f.Channel] {
			seen[f.Channel] = true
			out = append(out, f.Channel)
		}
	}
	sort.Strings(out)
	return out, nil
}

// FilteredView recomputes the analysis for an arbitrary date filter without
// touching the cached unfiltered rows. The whole read runs in one
// transaction so it observes a consistent snapshot
func (s *Service) FilteredView(ctx context.Context, channel, filter string) ([]analytics.UserStat, error) {
	f, err := datefilter.Parse(filter)
	if err != nil {
		return nil, perr.InvalidArgf("%v", err)
	}
	if err := s.requireChannel(ctx, channel); err != nil {
		return nil, err
	}

	var stats []analytics.UserStat
	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		corpus, err := s.messages.CorpusFrom(ctx, q, channel, f)
		if err != nil {
			return err
		}
		stats = s.analytics.Analyze(corpus).Stats
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []analytics.UserStat{}
	}
	return stats, nil
}

// ListDates returns the distinct log dates stored for a channel
func (s *Service) ListDates(ctx context.Context, channel string) ([]string, error) {
	if err := s.requireChannel(ctx, channel); err != nil {
		return nil, err
	}
	return s.messages.AvailableDates(ctx, channel)
}

// Channels lists stored channels
func (s *Service) Channels(ctx context.Context) ([]string, error) {
	return s.messages.Channels(ctx)
}

// Overview builds the dashboard row for one channel, optionally under a
// date filter (stats switch from cache to a fresh computation)
func (s *Service) Overview(ctx context.Context, channel, filter string) (ChannelOverview, []analytics.UserStat, []analytics.GroupView, error) {
	f, err := datefilter.Parse(filter)
	if err != nil {
		return ChannelOverview{}, nil, nil, perr.InvalidArgf("%v", err)
	}
	if err := s.requireChannel(ctx, channel); err != nil {
		return ChannelOverview{}, nil, nil, err
	}

	total, first, last, err := s.messages.ChannelTotals(ctx, channel)
	if err != nil {
		return ChannelOverview{}, nil, nil, err
	}
	status, _, err := s.analytics.ChannelStatus(ctx, channel)
	if err != nil {
		return ChannelOverview{}, nil, nil, err
	}
	ov := ChannelOverview{
		Channel:       channel,
		TotalMessages: total,
		FirstDate:     first,
		LastDate:      last,
		Status:        status,
	}

	if f.IsAll() {
		stats, err := s.analytics.CachedStats(ctx, channel)
		if err != nil {
			return ov, nil, nil, err
		}
		groups, err := s.analytics.CachedGroups(ctx, channel)
		if err != nil {
			return ov, nil, nil, err
		}
		return ov, stats, groups, nil
	}

	var (
		stats  []analytics.UserStat
		groups []analytics.GroupView
	)
	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		corpus, err := s.messages.CorpusFrom(ctx, q, channel, f)
		if err != nil {
			return err
		}
		a := s.analytics.Analyze(corpus)
		stats, groups = a.Stats, a.Groups
		return nil
	})
	if err != nil {
		return ov, nil, nil, err
	}
	return ov, stats, groups, nil
}

// UserDetail assembles one user's stats, paginated messages, and per-day
// activity. Unfiltered stats come from the cache; filtered stats are
// recomputed on the spot
func (s *Service) UserDetail(ctx context.Context, channel, username, filter string, page, pageSize int) (UserDetail, error) {
	f, err := datefilter.Parse(filter)
	if err != nil {
		return UserDetail{}, perr.InvalidArgf("%v", err)
	}
	if err := s.requireChannel(ctx, channel); err != nil {
		return UserDetail{}, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	detail := UserDetail{Page: page, PageSize: pageSize}

	// stats, messages, and activity read from one snapshot so the view
	// cannot straddle an ingestion commit
	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		if f.IsAll() {
			st, ok, err := s.analytics.CachedStat(ctx, q, channel, username)
			if err != nil {
				return err
			}
			if !ok {
				st = analytics.UserStat{Username: username, SimilarUsers: []analytics.SimilarUser{}}
			}
			detail.Stats = st
		} else {
			corpus, err := s.messages.CorpusFrom(ctx, q, channel, f)
			if err != nil {
				return err
			}
			detail.Stats = analytics.UserStat{Username: username, SimilarUsers: []analytics.SimilarUser{}}
			for _, st := range s.analytics.Analyze(corpus).Stats {
				if st.Username == username {
					detail.Stats = st
					break
				}
			}
		}

		events, total, err := s.messages.UserMessages(ctx, q, channel, username, f, page, pageSize)
		if err != nil {
			return err
		}
		detail.Total = total
		detail.Messages = make([]MessageView, 0, len(events))
		for _, e := range events {
			detail.Messages = append(detail.Messages, MessageView{
				TS:      e.TS.Format("2006-01-02 15:04:05"),
				Date:    e.LogDate,
				Message: e.Message,
			})
		}

		activity, err := s.messages.UserActivity(ctx, q, channel, username, f)
		if err != nil {
			return err
		}
		detail.Activity = activity
		return nil
	})
	if err != nil {
		return detail, err
	}
	return detail, nil
}

// requireChannel maps an unknown channel to a not found error
func (s *Service) requireChannel(ctx context.Context, channel string) error {
	ok, err := s.messages.ChannelExists(ctx, channel)
	if err != nil {
		return err
	}
	if !ok {
		return perr.NotFoundf("unknown channel %q", channel)
	}
	return nil
}

// Run invokes RunOnce on a fixed interval until ctx is done. The first pass
// fires immediately; a non-positive interval disables the loop
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if _, err := s.RunOnce(ctx, ""); err != nil {
			s.log.Error().Err(err).Msg("scheduled processing run failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
