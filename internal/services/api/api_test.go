package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"altscope/internal/modkit"
	"altscope/internal/platform/config"
	"altscope/internal/platform/logger"
	phttp "altscope/internal/platform/net/http"
	"altscope/internal/platform/store"
	"altscope/internal/services/analytics"
	"altscope/internal/services/api"
	"altscope/internal/services/ingest"
	"altscope/internal/services/messages"
	"altscope/internal/services/pipeline"
)

func newServer(t *testing.T) (*httptest.Server, string) {
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
	pipe := pipeline.NewService(deps, msgs, ing, an)

	mux := chi.NewRouter()
	api.New(pipe).Mount(phttp.AdaptChi(mux))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, root
}

func writeLog(t *testing.T, root, channel, name, content string) {
	t.Helper()
	dir := filepath.Join(root, channel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status %d want %d", url, resp.StatusCode, wantStatus)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return body
}

func postJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s status %d want %d", url, resp.StatusCode, wantStatus)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return body
}

const sampleLog = `[12:00:00] alice: honestly love this game so much
[13:00:00] alice2: honestly love this game so much
[14:00:00] carol: completely unrelated words entirely
`

func TestProcessThenReadChannel(t *testing.T) {
	srv, root := newServer(t)
	writeLog(t, root, "chan1", "chan1-2025-09-16.log", sampleLog)

	body := postJSON(t, srv.URL+"/api/process?channel=chan1", http.StatusAccepted)
	data := body["data"].(map[string]any)
	if data["new_lines"].(float64) != 3 {
		t.Fatalf("expected 3 new lines got %v", data["new_lines"])
	}

	body = getJSON(t, srv.URL+"/api/channels", http.StatusOK)
	channels := body["data"].(map[string]any)["channels"].([]any)
	if len(channels) != 1 {
		t.Fatalf("unexpected channels %v", channels)
	}
	first := channels[0].(map[string]any)
	if first["channel"] != "chan1" || first["total_messages"].(float64) != 3 {
		t.Fatalf("unexpected channel summary %v", first)
	}

	body = getJSON(t, srv.URL+"/api/channels/chan1", http.StatusOK)
	data = body["data"].(map[string]any)
	users := data["users"].([]any)
	if len(users) != 3 {
		t.Fatalf("expected 3 users got %d", len(users))
	}
	groups := data["groups"].([]any)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group got %v", groups)
	}
}

func TestGetChannel_UnknownIs404(t *testing.T) {
	srv, _ := newServer(t)
	body := getJSON(t, srv.URL+"/api/channels/nope", http.StatusNotFound)
	if body["error"] == nil && body["data"] != nil {
		t.Fatalf("expected error envelope got %v", body)
	}
}

func TestGetChannel_BadFilterIs422(t *testing.T) {
	srv, root := newServer(t)
	writeLog(t, root, "chan1", "chan1-2025-09-16.log", sampleLog)
	postJSON(t, srv.URL+"/api/process?channel=chan1", http.StatusAccepted)

	getJSON(t, srv.URL+"/api/channels/chan1?date_filter=garbage", http.StatusUnprocessableEntity)
}

func TestListDatesEndpoint(t *testing.T) {
	srv, root := newServer(t)
	writeLog(t, root, "chan1", "chan1-2025-09-16.log", "[12:00:00] alice: day one here\n")
	writeLog(t, root, "chan1", "chan1-2025-09-18.log", "[12:00:00] alice: day two here\n")
	postJSON(t, srv.URL+"/api/process?channel=chan1", http.StatusAccepted)

	body := getJSON(t, srv.URL+"/api/channels/chan1/dates", http.StatusOK)
	dates := body["data"].(map[string]any)["dates"].([]any)
	if len(dates) != 2 || dates[0] != "2025-09-16" {
		t.Fatalf("unexpected dates %v", dates)
	}
}

func TestUserDetailEndpoint(t *testing.T) {
	srv, root := newServer(t)
	writeLog(t, root, "chan1", "chan1-2025-09-16.log", sampleLog)
	postJSON(t, srv.URL+"/api/process?channel=chan1", http.StatusAccepted)

	body := getJSON(t, srv.URL+"/api/channels/chan1/users/alice?page=1&page_size=10", http.StatusOK)
	data := body["data"].(map[string]any)
	stats := data["stats"].(map[string]any)
	if stats["username"] != "alice" {
		t.Fatalf("unexpected stats %v", stats)
	}
	if stats["alt_likelihood"].(float64) <= 60 {
		t.Fatalf("expected alt likelihood above 60 got %v", stats["alt_likelihood"])
	}
	msgs := data["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message got %d", len(msgs))
	}
}

func TestUserDetail_BadPageIs400(t *testing.T) {
	srv, root := newServer(t)
	writeLog(t, root, "chan1", "chan1-2025-09-16.log", sampleLog)
	postJSON(t, srv.URL+"/api/process?channel=chan1", http.StatusAccepted)

	resp, err := http.Get(srv.URL + "/api/channels/chan1/users/alice?page=-1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a negative page got %d", resp.StatusCode)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv, root := newServer(t)
	writeLog(t, root, "chan1", "chan1-2025-09-16.log", "[12:00:00] alice: summary test line\n")
	postJSON(t, srv.URL+"/api/process", http.StatusAccepted)

	body := getJSON(t, srv.URL+"/api/summary", http.StatusOK)
	data := body["data"].(map[string]any)
	if data["channel_count"].(float64) != 1 || data["total_messages"].(float64) != 1 {
		t.Fatalf("unexpected summary %v", data)
	}
}
