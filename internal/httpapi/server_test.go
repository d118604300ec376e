package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tapfarm/internal/config"
	"tapfarm/internal/logbus"
	"tapfarm/internal/metrics"
	"tapfarm/internal/model"
	"tapfarm/internal/store/sqlite"
)

type fixedState model.EngineState

func (f fixedState) State() model.EngineState { return model.EngineState(f) }

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	st, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	m := metrics.New()
	m.ObserveTap("acc", 131, 131, 869)

	cfg := config.Config{Server: config.ServerConfig{Cors: config.CorsConfig{AllowOrigins: []string{"http://localhost:5173"}}}}
	s := New(Options{
		Cfg:     cfg,
		Bus:     logbus.New(10),
		Store:   st,
		Engine:  fixedState{Running: true, Pass: 3, CurrentAccount: "#1 …abc123", Phase: model.PhaseTapLoop},
		Metrics: m,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestEngineState(t *testing.T) {
	srv, _ := newTestServer(t)
	body := getJSON(t, srv.URL+"/api/v1/engine/state", http.StatusOK)
	data := body["data"].(map[string]any)
	if data["running"] != true || data["phase"] != "tap_loop" || data["pass"] != float64(3) {
		t.Fatalf("state = %v", data)
	}
}

func TestAccountsNeverExposeCredentials(t *testing.T) {
	srv, st := newTestServer(t)
	if _, err := st.SyncAccounts(context.Background(), []model.Account{
		{Credential: "query_id=secret-abc123", Label: model.AccountLabel(1, "query_id=secret-abc123"), Line: 1},
	}); err != nil {
		t.Fatalf("SyncAccounts: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/accounts")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Data []accountView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].Label != "#1 …abc123" {
		t.Fatalf("accounts = %+v", body.Data)
	}
	if strings.Contains(body.Data[0].ID+body.Data[0].Label, "secret") {
		t.Fatal("credential leaked")
	}
}

func TestPassesAndOutcomes(t *testing.T) {
	srv, st := newTestServer(t)
	now := time.Now()
	pass := model.PassSummary{
		ID: "pass-1", Seq: 1, StartedAt: now, FinishedAt: now.Add(time.Minute), Completed: 1, Gold: 262,
		Outcomes: []model.AccountOutcome{{
			PassID: "pass-1", AccountID: "acc-1", Label: "#1 …abc123",
			Status: model.OutcomeCompleted, Phase: model.PhaseDone, LevelUp: model.LevelUpSkipped,
			Taps: 2, Gold: 262, StartedAt: now, FinishedAt: now.Add(time.Minute),
		}},
	}
	if err := st.SavePass(context.Background(), pass); err != nil {
		t.Fatalf("SavePass: %v", err)
	}

	list := getJSON(t, srv.URL+"/api/v1/passes?limit=5", http.StatusOK)
	passes := list["data"].([]any)
	if len(passes) != 1 || passes[0].(map[string]any)["id"] != "pass-1" {
		t.Fatalf("passes = %v", passes)
	}

	outs := getJSON(t, srv.URL+"/api/v1/passes/pass-1/outcomes", http.StatusOK)
	if rows := outs["data"].([]any); len(rows) != 1 {
		t.Fatalf("outcomes = %v", rows)
	}

	getJSON(t, srv.URL+"/api/v1/passes/missing/outcomes", http.StatusNotFound)
	getJSON(t, srv.URL+"/api/v1/passes?limit=abc", http.StatusBadRequest)
}

func TestPassesEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)
	body := getJSON(t, srv.URL+"/api/v1/passes", http.StatusOK)
	if rows, ok := body["data"].([]any); !ok || len(rows) != 0 {
		t.Fatalf("data = %v", body["data"])
	}
}

func TestMetricsAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	getJSON(t, srv.URL+"/health", http.StatusOK)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "tapfarm_taps_total 1") {
		t.Fatal("tap counter missing from /metrics")
	}
}

func TestCorsPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/passes", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestEngineStateRejectsPost(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/engine/state", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
