package pipeline

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
)

// white-box: the busy map is driven directly to make contention deterministic

func newBusyService(t *testing.T) *Service {
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
	dir := filepath.Join(root, "chan1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	line := "[12:00:00] alice: hello busy world\n"
	if err := os.WriteFile(filepath.Join(dir, "chan1-2025-09-16.log"), []byte(line), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deps := modkit.Deps{Cfg: config.New(), Log: logger.Get(), DB: st.SQL}
	msgs := messages.NewService(deps)
	ing := ingest.NewService(deps, msgs, root)
	an := analytics.NewService(deps, analytics.Config{})
	return NewService(deps, msgs, ing, an)
}

func TestRunOnce_BusyChannelConflicts(t *testing.T) {
	s := newBusyService(t)
	s.busy["chan1"] = true

	if _, err := s.RunOnce(context.Background(), "chan1"); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("busy channel must refuse a second run, got %v", err)
	}

	s.release("chan1")
	summary, err := s.RunOnce(context.Background(), "chan1")
	if err != nil {
		t.Fatalf("released channel must run, got %v", err)
	}
	if summary.NewLines != 1 {
		t.Fatalf("expected 1 line after release got %d", summary.NewLines)
	}
	if s.busy["chan1"] {
		t.Fatalf("flag must be released after a completed run")
	}
}

func TestRunOnce_AllChannelsSkipsBusy(t *testing.T) {
	s := newBusyService(t)
	s.busy["chan1"] = true

	summary, err := s.RunOnce(context.Background(), "")
	if err != nil {
		t.Fatalf("all-channel run must not fail on a busy channel: %v", err)
	}
	if len(summary.Channels) != 1 || !summary.Channels[0].Skipped {
		t.Fatalf("busy channel must be reported skipped, got %+v", summary.Channels)
	}
	if summary.NewLines != 0 {
		t.Fatalf("skipped channel must ingest nothing, got %d", summary.NewLines)
	}
}
