package api

import (
	"net/http"

	phttp "altscope/internal/platform/net/http"
	"altscope/internal/platform/net/http/bind"
	"altscope/internal/services/pipeline"

	"github.com/go-chi/chi/v5"
)

type filterQuery struct {
	DateFilter string `query:"date_filter"`
}

type userDetailQuery struct {
	DateFilter string `query:"date_filter"`
	Page       int    `query:"page" validate:"omitempty,min=1"`
	PageSize   int    `query:"page_size" validate:"omitempty,min=1,max=200"`
}

type processQuery struct {
	Channel string `query:"channel"`
}

// listChannels returns the per-channel summaries: totals, date range, and
// analytics freshness
func (m *Module) listChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := m.pipe.Channels(r.Context())
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	out := make([]pipeline.ChannelOverview, 0, len(channels))
	for _, ch := range channels {
		ov, _, _, err := m.pipe.Overview(r.Context(), ch, "")
		if err != nil {
			phttp.RespondError(w, r, err)
			return
		}
		out = append(out, ov)
	}
	phttp.RespondOK(w, r, map[string]any{"channels": out})
}

// getChannel returns the channel overview, user stats, and groups, honoring
// an optional date filter
func (m *Module) getChannel(w http.ResponseWriter, r *http.Request) {
	var q filterQuery
	if err := bind.Query(r, &q); err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	channel := chi.URLParam(r, "channel")

	ov, stats, groups, err := m.pipe.Overview(r.Context(), channel, q.DateFilter)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	phttp.RespondOK(w, r, map[string]any{
		"channel": ov,
		"users":   stats,
		"groups":  groups,
	})
}

// listDates returns the distinct log dates stored for a channel
func (m *Module) listDates(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	dates, err := m.pipe.ListDates(r.Context(), channel)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	phttp.RespondOK(w, r, map[string]any{"dates": dates})
}

// getUserDetail returns one user's stats, paginated messages, and activity
func (m *Module) getUserDetail(w http.ResponseWriter, r *http.Request) {
	var q userDetailQuery
	if err := bind.Query(r, &q); err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	channel := chi.URLParam(r, "channel")
	username := chi.URLParam(r, "username")

	detail, err := m.pipe.UserDetail(r.Context(), channel, username, q.DateFilter, q.Page, q.PageSize)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	phttp.RespondOK(w, r, detail)
}

// postProcess triggers a processing run, for one channel or all
// A run already in progress for the channel yields a conflict
func (m *Module) postProcess(w http.ResponseWriter, r *http.Request) {
	var q processQuery
	if err := bind.Query(r, &q); err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	summary, err := m.pipe.RunOnce(r.Context(), q.Channel)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	phttp.RespondAccepted(w, r, summary)
}

// getSummary returns aggregate totals across all channels
func (m *Module) getSummary(w http.ResponseWriter, r *http.Request) {
	channels, err := m.pipe.Channels(r.Context())
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	var (
		total       int
		lastUpdated string
		out         = make([]pipeline.ChannelOverview, 0, len(channels))
	)
	for _, ch := range channels {
		ov, _, _, err := m.pipe.Overview(r.Context(), ch, "")
		if err != nil {
			phttp.RespondError(w, r, err)
			return
		}
		total += ov.TotalMessages
		if ov.Status.UpdatedAt > lastUpdated {
			lastUpdated = ov.Status.UpdatedAt
		}
		out = append(out, ov)
	}
	phttp.RespondOK(w, r, map[string]any{
		"channel_count":  len(channels),
		"total_messages": total,
		"last_updated":   lastUpdated,
		"channels":       out,
	})
}
