package messages_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"altscope/internal/core/datefilter"
	"altscope/internal/modkit"
	"altscope/internal/modkit/repokit"
	"altscope/internal/platform/config"
	"altscope/internal/platform/logger"
	"altscope/internal/platform/store"
	"altscope/internal/services/messages"
)

func newService(t *testing.T) (*messages.Service, *store.Store) {
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

	deps := modkit.Deps{Cfg: config.New(), Log: logger.Get(), DB: st.SQL}
	return messages.NewService(deps), st
}

func seed(t *testing.T, svc *messages.Service, st *store.Store, events []messages.Event) {
	t.Helper()
	err := st.SQL.Tx(context.Background(), func(q repokit.Queryer) error {
		_, err := svc.Append(context.Background(), q, events)
		return err
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func ev(channel, user, ts, date, msg, file string, line int) messages.Event {
	parsed, _ := time.Parse("2006-01-02 15:04:05", ts)
	return messages.Event{
		Channel: channel, Username: user, TS: parsed, LogDate: date,
		Message: msg, SourceFile: file, SourceLine: line,
	}
}

func TestAppend_IdempotentByFileLine(t *testing.T) {
	svc, st := newService(t)
	events := []messages.Event{
		ev("c1", "alice", "2025-09-16 12:00:00", "2025-09-16", "hello", "c1/a.log", 1),
		ev("c1", "bob", "2025-09-16 12:10:00", "2025-09-16", "hey", "c1/a.log", 2),
	}
	seed(t, svc, st, events)

	var inserted int64
	err := st.SQL.Tx(context.Background(), func(q repokit.Queryer) error {
		var err error
		inserted, err = svc.Append(context.Background(), q, events)
		return err
	})
	if err != nil {
		t.Fatalf("second append failed: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("duplicate batch must insert 0 rows, got %d", inserted)
	}
}

func TestCorpusFrom_GroupsByUser(t *testing.T) {
	svc, st := newService(t)
	seed(t, svc, st, []messages.Event{
		ev("c1", "alice", "2025-09-16 12:00:00", "2025-09-16", "one", "c1/a.log", 1),
		ev("c1", "alice", "2025-09-16 12:01:00", "2025-09-16", "two", "c1/a.log", 2),
		ev("c1", "bob", "2025-09-16 12:02:00", "2025-09-16", "three", "c1/a.log", 3),
		ev("c2", "carol", "2025-09-16 12:03:00", "2025-09-16", "other channel", "c2/a.log", 1),
	})

	var corpus messages.Corpus
	err := st.SQL.Tx(context.Background(), func(q repokit.Queryer) error {
		var err error
		corpus, err = svc.CorpusFrom(context.Background(), q, "c1", datefilter.All())
		return err
	})
	if err != nil {
		t.Fatalf("corpus failed: %v", err)
	}

	if corpus.Counts["alice"] != 2 || corpus.Counts["bob"] != 1 {
		t.Fatalf("unexpected counts %v", corpus.Counts)
	}
	if _, ok := corpus.Counts["carol"]; ok {
		t.Fatalf("corpus must not leak other channels")
	}
	if corpus.TotalEvents() != 3 {
		t.Fatalf("expected 3 events got %d", corpus.TotalEvents())
	}
	if len(corpus.Messages["alice"]) != 2 || corpus.Messages["alice"][0] != "one" {
		t.Fatalf("messages must keep chronological order, got %v", corpus.Messages["alice"])
	}
}

func TestCorpusFrom_DateFiltered(t *testing.T) {
	svc, st := newService(t)
	seed(t, svc, st, []messages.Event{
		ev("c1", "alice", "2025-09-16 12:00:00", "2025-09-16", "in range", "c1/a.log", 1),
		ev("c1", "alice", "2025-09-18 12:00:00", "2025-09-18", "also in", "c1/b.log", 1),
		ev("c1", "alice", "2025-09-20 12:00:00", "2025-09-20", "out", "c1/c.log", 1),
	})

	f, _ := datefilter.Parse("2025-09-16:2025-09-18")
	var corpus messages.Corpus
	err := st.SQL.Tx(context.Background(), func(q repokit.Queryer) error {
		var err error
		corpus, err = svc.CorpusFrom(context.Background(), q, "c1", f)
		return err
	})
	if err != nil {
		t.Fatalf("corpus failed: %v", err)
	}
	if corpus.Counts["alice"] != 2 {
		t.Fatalf("inclusive range must match 2 events, got %d", corpus.Counts["alice"])
	}
}

func TestUserMessages_PaginationNewestFirst(t *testing.T) {
	svc, st := newService(t)
	seed(t, svc, st, []messages.Event{
		ev("c1", "alice", "2025-09-16 12:00:00", "2025-09-16", "first", "c1/a.log", 1),
		ev("c1", "alice", "2025-09-16 12:01:00", "2025-09-16", "second", "c1/a.log", 2),
		ev("c1", "alice", "2025-09-16 12:02:00", "2025-09-16", "third", "c1/a.log", 3),
	})

	var (
		page  []messages.Event
		total int
	)
	err := st.SQL.Tx(context.Background(), func(q repokit.Queryer) error {
		var err error
		page, total, err = svc.UserMessages(context.Background(), q, "c1", "alice", datefilter.All(), 1, 2)
		return err
	})
	if err != nil {
		t.Fatalf("page failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3 got %d", total)
	}
	if len(page) != 2 || page[0].Message != "third" || page[1].Message != "second" {
		t.Fatalf("expected newest first page got %v", page)
	}

	err = st.SQL.Tx(context.Background(), func(q repokit.Queryer) error {
		var err error
		page, _, err = svc.UserMessages(context.Background(), q, "c1", "alice", datefilter.All(), 2, 2)
		return err
	})
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(page) != 1 || page[0].Message != "first" {
		t.Fatalf("expected last page with oldest message got %v", page)
	}
}

func TestChannelsAndDates(t *testing.T) {
	svc, st := newService(t)
	seed(t, svc, st, []messages.Event{
		ev("c1", "alice", "2025-09-16 12:00:00", "2025-09-16", "a", "c1/a.log", 1),
		ev("c1", "alice", "2025-09-18 12:00:00", "2025-09-18", "b", "c1/b.log", 1),
		ev("c2", "bob", "2025-09-17 12:00:00", "2025-09-17", "c", "c2/a.log", 1),
	})

	channels, err := svc.Channels(context.Background())
	if err != nil {
		t.Fatalf("channels failed: %v", err)
	}
	if len(channels) != 2 || channels[0] != "c1" || channels[1] != "c2" {
		t.Fatalf("unexpected channels %v", channels)
	}

	dates, err := svc.AvailableDates(context.Background(), "c1")
	if err != nil {
		t.Fatalf("dates failed: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2025-09-16" || dates[1] != "2025-09-18" {
		t.Fatalf("unexpected dates %v", dates)
	}

	users, err := svc.Users(context.Background(), "c1", datefilter.All())
	if err != nil {
		t.Fatalf("users failed: %v", err)
	}
	if len(users) != 1 || users[0] != "alice" {
		t.Fatalf("unexpected users %v", users)
	}

	ok, err := svc.ChannelExists(context.Background(), "c1")
	if err != nil || !ok {
		t.Fatalf("c1 must exist: %v %v", ok, err)
	}
	ok, err = svc.ChannelExists(context.Background(), "nope")
	if err != nil || ok {
		t.Fatalf("unknown channel must not exist: %v %v", ok, err)
	}
}

func TestUserActivity(t *testing.T) {
	svc, st := newService(t)
	seed(t, svc, st, []messages.Event{
		ev("c1", "alice", "2025-09-16 12:00:00", "2025-09-16", "a", "c1/a.log", 1),
		ev("c1", "alice", "2025-09-16 13:00:00", "2025-09-16", "b", "c1/a.log", 2),
		ev("c1", "alice", "2025-09-18 12:00:00", "2025-09-18", "c", "c1/b.log", 1),
	})

	var act []messages.DayActivity
	err := st.SQL.Tx(context.Background(), func(q repokit.Queryer) error {
		var err error
		act, err = svc.UserActivity(context.Background(), q, "c1", "alice", datefilter.All())
		return err
	})
	if err != nil {
		t.Fatalf("activity failed: %v", err)
	}
	if len(act) != 2 || act[0].Date != "2025-09-16" || act[0].Count != 2 || act[1].Count != 1 {
		t.Fatalf("unexpected activity %v", act)
	}
}
