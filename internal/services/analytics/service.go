package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"altscope/internal/core/copresence"
	"altscope/internal/core/datefilter"
	"altscope/internal/core/stylometry"
	"altscope/internal/core/textkit"
	"altscope/internal/modkit"
	"altscope/internal/modkit/repokit"
	perr "altscope/internal/platform/errors"
	"altscope/internal/platform/logger"
	"altscope/internal/services/messages"
)

// DefaultTopSimilar caps the similar-users list kept per user
const DefaultTopSimilar = 5

// Config carries the analysis policy knobs
//
// Threshold is the minimum cosine similarity that links two users; Window is
// the co-presence exclusion window. Both change which groups form, so runs
// with different settings should not share a cache key
type Config struct {
	Threshold  float64
	Window     time.Duration
	TopSimilar int
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = stylometry.DefaultThreshold
	}
	if c.Window <= 0 {
		c.Window = copresence.DefaultWindow
	}
	if c.TopSimilar <= 0 {
		c.TopSimilar = DefaultTopSimilar
	}
	return c
}

// Service runs the analysis and manages the cached unfiltered view
type Service struct {
	db     repokit.TxRunner
	binder repokit.Binder[Repo]
	cfg    Config
	norm   *textkit.Normalizer
	log    *logger.Logger
}

// NewService builds the analytics service from shared deps
func NewService(d modkit.Deps, cfg Config) *Service {
	return &Service{
		db:     d.MustDB(),
		binder: NewSQLite(),
		cfg:    cfg.withDefaults(),
		norm:   textkit.New(),
		log:    d.Log,
	}
}

// Analysis is the in-memory result of one run over a corpus
type Analysis struct {
	Stats  []UserStat
	Groups []GroupView
}

// Analyze runs co-presence exclusion and similarity grouping over the corpus
// and converts the result into per-user stats. Pure; nothing is persisted
func (s *Service) Analyze(corpus messages.Corpus) Analysis {
	tokens := make(map[string][]string, len(corpus.Messages))
	for user, msgs := range corpus.Messages {
		var toks []string
		for _, m := range msgs {
			toks = append(toks, s.norm.Tokenize(m)...)
		}
		tokens[user] = toks
	}

	excluded := copresence.ExcludedPairs(corpus.Timestamps, s.cfg.Window)
	res := stylometry.Analyze(tokens, s.cfg.Threshold, excluded.Has)

	var out Analysis
	for user, count := range corpus.Counts {
		st := UserStat{
			Username:      user,
			ChatCount:     count,
			AltLikelihood: toLikelihood(res.MaxSim[user]),
			SimilarUsers:  []SimilarUser{},
		}
		for i, r := range res.Similar[user] {
			if i >= s.cfg.TopSimilar {
				break
			}
			st.SimilarUsers = append(st.SimilarUsers, SimilarUser{
				Username:   r.Username,
				Similarity: toLikelihood(r.Similarity),
			})
		}
		out.Stats = append(out.Stats, st)
	}
	sort.SliceStable(out.Stats, func(i, j int) bool {
		a, b := out.Stats[i], out.Stats[j]
		if a.AltLikelihood != b.AltLikelihood {
			return a.AltLikelihood > b.AltLikelihood
		}
		if a.ChatCount != b.ChatCount {
			return a.ChatCount > b.ChatCount
		}
		return a.Username < b.Username
	})

	for i, g := range res.Groups {
		out.Groups = append(out.Groups, GroupView{
			GroupID:       i + 1,
			Members:       g.Members,
			MaxSimilarity: g.MaxSimilarity,
		})
	}
	return out
}

// Recompute analyzes the corpus and fully replaces the cached rows for the
// unfiltered view, inside the caller's transaction
func (s *Service) Recompute(ctx context.Context, q repokit.Queryer, channel string, corpus messages.Corpus, lastDate string) (Analysis, error) {
	a := s.Analyze(corpus)

	now := time.Now().Format("2006-01-02 15:04:05")
	for i := range a.Stats {
		a.Stats[i].LastUpdated = now
	}

	repo := s.binder.Bind(q)
	if err := repo.ReplaceUserStats(ctx, channel, datefilter.AllKey, a.Stats); err != nil {
		return a, perr.FromSQLitef(err, "cache stats for %q", channel)
	}
	if err := repo.ReplaceGroups(ctx, channel, datefilter.AllKey, a.Groups); err != nil {
		return a, perr.FromSQLitef(err, "cache groups for %q", channel)
	}
	err := repo.UpsertStatus(ctx, Status{
		Channel:           channel,
		LastProcessedDate: lastDate,
		TotalMessages:     corpus.TotalEvents(),
		UpdatedAt:         now,
	})
	if err != nil {
		return a, perr.FromSQLitef(err, "update status for %q", channel)
	}
	return a, nil
}

// CachedStats returns the persisted unfiltered rows for a channel
func (s *Service) CachedStats(ctx context.Context, channel string) ([]UserStat, error) {
	var out []UserStat
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.binder.Bind(q).UserStats(ctx, channel, datefilter.AllKey)
		return err
	})
	if err != nil {
		return nil, perr.FromSQLitef(err, "read cached stats for %q", channel)
	}
	return out, nil
}

// CachedStat returns one user's persisted unfiltered row, in the caller's
// transaction
func (s *Service) CachedStat(ctx context.Context, q repokit.Queryer, channel, username string) (UserStat, bool, error) {
	st, ok, err := s.binder.Bind(q).UserStat(ctx, channel, datefilter.AllKey, username)
	if err != nil {
		return UserStat{}, false, perr.FromSQLitef(err, "read cached stat for %q", username)
	}
	return st, ok, nil
}

// CachedGroups returns the persisted unfiltered groups for a channel
func (s *Service) CachedGroups(ctx context.Context, channel string) ([]GroupView, error) {
	var out []GroupView
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.binder.Bind(q).Groups(ctx, channel, datefilter.AllKey)
		return err
	})
	if err != nil {
		return nil, perr.FromSQLitef(err, "read cached groups for %q", channel)
	}
	return out, nil
}

// ChannelStatus returns the processing status row for a channel
func (s *Service) ChannelStatus(ctx context.Context, channel string) (Status, bool, error) {
	var (
		st Status
		ok bool
	)
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		st, ok, err = s.binder.Bind(q).Status(ctx, channel)
		return err
	})
	if err != nil {
		return Status{}, false, perr.FromSQLitef(err, "read status for %q", channel)
	}
	return st, ok, nil
}

// toLikelihood converts a cosine similarity to a 0-100 score rounded to one
// decimal place
func toLikelihood(sim float64) float64 {
	v := math.Round(sim*1000) / 10
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
