package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"altscope/internal/modkit"
	"altscope/internal/platform/config"
	perr "altscope/internal/platform/errors"
	"altscope/internal/platform/logger"
	"altscope/internal/platform/store"
	"altscope/internal/services/analytics"
	"altscope/internal/services/ingest"
	"altscope/internal/services/messages"
	"altscope/internal/services/pipeline"
)

type fixture struct {
	pipe *pipeline.Service
	an   *analytics.Service
	root string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{
		SQLite: store.SQLiteConfig{
			Enabled: true,
			Path:    filepath.Join(t.TempDir(), "test.db"),
		},
	})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	root := t.TempDir()
	deps := modkit.Deps{Cfg: config.New(), Log: logger.Get(), DB: st.SQL}
	msgs := messages.NewService(deps)
	ing := ingest.NewService(deps, msgs, root)
	an := analytics.NewService(deps, analytics.Config{})
	return &fixture{
		pipe: pipeline.NewService(deps, msgs, ing, an),
		an:   an,
		root: root,
	}
}

func (f *fixture) writeLog(t *testing.T, channel, name, content string) {
	t.Helper()
	dir := filepath.Join(f.root, channel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

const altLog = `[12:00:00] alice: honestly love this game so much
[12:05:00] alice: great stuff every single time really
[13:00:00] alice2: honestly love this game so much
[13:05:00] alice2: great stuff every single time really
[14:00:00] carol: completely unrelated vocabulary entirely different
`

func TestRunOnce_AltAccountsGrouped(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log", altLog)

	summary, err := f.pipe.RunOnce(context.Background(), "chan1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.NewLines != 5 || summary.ParseFailures != 0 {
		t.Fatalf("expected 5 lines 0 failures got %+v", summary)
	}
	if summary.UsersAffected != 3 {
		t.Fatalf("expected 3 users affected got %d", summary.UsersAffected)
	}

	stats, err := f.an.CachedStats(context.Background(), "chan1")
	if err != nil {
		t.Fatalf("cached stats failed: %v", err)
	}
	byUser := make(map[string]analytics.UserStat)
	for _, st := range stats {
		byUser[st.Username] = st
	}
	if byUser["alice"].AltLikelihood <= 60 || byUser["alice2"].AltLikelihood <= 60 {
		t.Fatalf("alice and alice2 must score above 60, got %v / %v",
			byUser["alice"].AltLikelihood, byUser["alice2"].AltLikelihood)
	}
	if byUser["carol"].AltLikelihood != 0 {
		t.Fatalf("carol must score 0, got %v", byUser["carol"].AltLikelihood)
	}

	groups, err := f.an.CachedGroups(context.Background(), "chan1")
	if err != nil || len(groups) != 1 {
		t.Fatalf("expected one cached group got %v err %v", groups, err)
	}
	if len(groups[0].Members) != 2 {
		t.Fatalf("expected alice+alice2 group got %v", groups[0].Members)
	}
}

func TestRunOnce_SimultaneousPostersNotGrouped(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log",
		"[12:00:00] alice: honestly love this game tonight\n"+
			"[12:00:01] alice2: honestly love this game tonight\n")

	if _, err := f.pipe.RunOnce(context.Background(), "chan1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	groups, err := f.an.CachedGroups(context.Background(), "chan1")
	if err != nil {
		t.Fatalf("cached groups failed: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("co-present users must not group despite identical text, got %v", groups)
	}
}

func TestRunOnce_CoPresentPairNotBridged(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log",
		"[12:00:00] alice: honestly love this game tonight\n"+
			"[12:00:01] bob: honestly love this game tonight\n"+
			"[15:00:00] carol: honestly love this game tonight\n")

	if _, err := f.pipe.RunOnce(context.Background(), "chan1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	groups, err := f.an.CachedGroups(context.Background(), "chan1")
	if err != nil {
		t.Fatalf("cached groups failed: %v", err)
	}
	for _, g := range groups {
		seen := make(map[string]bool, len(g.Members))
		for _, m := range g.Members {
			seen[m] = true
		}
		if seen["alice"] && seen["bob"] {
			t.Fatalf("co-present pair must not share a group via a third user, got %v", g.Members)
		}
	}
	if len(groups) != 1 || len(groups[0].Members) != 2 {
		t.Fatalf("the third user must still group with one of the pair, got %v", groups)
	}
}

func TestRunOnce_IdempotentSecondPass(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log", altLog)

	if _, err := f.pipe.RunOnce(context.Background(), "chan1"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	summary, err := f.pipe.RunOnce(context.Background(), "chan1")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if summary.NewLines != 0 {
		t.Fatalf("second pass with no new content must ingest 0, got %d", summary.NewLines)
	}
}

func TestRunOnce_MalformedLineCounted(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log",
		"[12:00:00] alice: valid message here\nnot a valid line\n[12:01:00] bob: still works fine\n")

	summary, err := f.pipe.RunOnce(context.Background(), "chan1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.ParseFailures != 1 {
		t.Fatalf("expected 1 parse failure got %d", summary.ParseFailures)
	}
	if summary.NewLines != 2 {
		t.Fatalf("valid lines must still ingest, got %d", summary.NewLines)
	}
}

func TestRunOnce_AllChannels(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log", "[12:00:00] alice: hello over here\n")
	f.writeLog(t, "chan2", "chan2-2025-09-16.log", "[12:00:00] bob: hello over there\n")

	summary, err := f.pipe.RunOnce(context.Background(), "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(summary.Channels) != 2 || summary.NewLines != 2 {
		t.Fatalf("expected both channels processed, got %+v", summary)
	}
}

func TestFilteredView_RangeCounts(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log",
		"[12:00:00] alice: first day message\n[12:05:00] bob: also first day\n")
	f.writeLog(t, "chan1", "chan1-2025-09-17.log", "[12:00:00] alice: second day message\n")
	f.writeLog(t, "chan1", "chan1-2025-09-20.log", "[12:00:00] dave: outside the range\n")

	if _, err := f.pipe.RunOnce(context.Background(), "chan1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	stats, err := f.pipe.FilteredView(context.Background(), "chan1", "2025-09-16:2025-09-17")
	if err != nil {
		t.Fatalf("filtered view failed: %v", err)
	}
	byUser := make(map[string]int)
	for _, st := range stats {
		byUser[st.Username] = st.ChatCount
	}
	if byUser["alice"] != 2 || byUser["bob"] != 1 {
		t.Fatalf("unexpected counts %v", byUser)
	}
	if _, ok := byUser["dave"]; ok {
		t.Fatalf("user outside the range must not appear")
	}
}

func TestFilteredView_Errors(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log", "[12:00:00] alice: hello world again\n")
	if _, err := f.pipe.RunOnce(context.Background(), "chan1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, err := f.pipe.FilteredView(context.Background(), "nope", ""); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("unknown channel must be not found, got %v", err)
	}
	if _, err := f.pipe.FilteredView(context.Background(), "chan1", "garbage"); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("bad filter must be invalid argument, got %v", err)
	}

	// a valid filter matching nothing returns an empty set, not an error
	stats, err := f.pipe.FilteredView(context.Background(), "chan1", "1999-01-01")
	if err != nil {
		t.Fatalf("empty range must not error: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected empty stats got %v", stats)
	}
}

func TestListDates(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log", "[12:00:00] alice: day one\n")
	f.writeLog(t, "chan1", "chan1-2025-09-18.log", "[12:00:00] alice: day two\n")
	if _, err := f.pipe.RunOnce(context.Background(), "chan1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	dates, err := f.pipe.ListDates(context.Background(), "chan1")
	if err != nil {
		t.Fatalf("list dates failed: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2025-09-16" || dates[1] != "2025-09-18" {
		t.Fatalf("unexpected dates %v", dates)
	}
}

func TestUserDetail(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log", altLog)
	if _, err := f.pipe.RunOnce(context.Background(), "chan1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	detail, err := f.pipe.UserDetail(context.Background(), "chan1", "alice", "", 1, 10)
	if err != nil {
		t.Fatalf("user detail failed: %v", err)
	}
	if detail.Stats.Username != "alice" || detail.Stats.AltLikelihood <= 60 {
		t.Fatalf("expected cached alice stats, got %+v", detail.Stats)
	}
	if detail.Total != 2 || len(detail.Messages) != 2 {
		t.Fatalf("expected 2 messages got total=%d len=%d", detail.Total, len(detail.Messages))
	}
	if detail.Messages[0].TS < detail.Messages[1].TS {
		t.Fatalf("messages must be newest first")
	}
	if len(detail.Activity) != 1 || detail.Activity[0].Count != 2 {
		t.Fatalf("unexpected activity %v", detail.Activity)
	}

	// unknown user on a known channel gets empty stats, not an error
	detail, err = f.pipe.UserDetail(context.Background(), "chan1", "ghost", "", 1, 10)
	if err != nil {
		t.Fatalf("ghost detail failed: %v", err)
	}
	if detail.Stats.AltLikelihood != 0 || detail.Total != 0 {
		t.Fatalf("ghost user must have empty detail, got %+v", detail)
	}
}

func TestOverview(t *testing.T) {
	f := newFixture(t)
	f.writeLog(t, "chan1", "chan1-2025-09-16.log", altLog)
	if _, err := f.pipe.RunOnce(context.Background(), "chan1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	ov, stats, groups, err := f.pipe.Overview(context.Background(), "chan1", "")
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if ov.TotalMessages != 5 || ov.FirstDate != "2025-09-16" || ov.LastDate != "2025-09-16" {
		t.Fatalf("unexpected overview %+v", ov)
	}
	if ov.Status.TotalMessages != 5 {
		t.Fatalf("status must reflect the processed corpus, got %+v", ov.Status)
	}
	if len(stats) != 3 || len(groups) != 1 {
		t.Fatalf("expected cached stats and groups, got %d/%d", len(stats), len(groups))
	}
}
