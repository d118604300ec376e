package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"tapfarm/internal/config"
	"tapfarm/internal/logbus"
	"tapfarm/internal/metrics"
	"tapfarm/internal/model"
	"tapfarm/internal/ws"
)

// History is the read side of the pass store.
type History interface {
	ListPasses(ctx context.Context, limit int) ([]model.PassSummary, error)
	ListOutcomes(ctx context.Context, passID string) ([]model.AccountOutcome, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// StateSource reports live engine progress.
type StateSource interface {
	State() model.EngineState
}

type Options struct {
	Cfg     config.Config
	Bus     *logbus.Bus
	Store   History
	Engine  StateSource
	Metrics *metrics.Metrics
}

// Server is the read-only status API. It never talks to the game service.
type Server struct {
	cfg     config.Config
	bus     *logbus.Bus
	store   History
	engine  StateSource
	metrics *metrics.Metrics
	ws      *ws.Handler
}

func New(opts Options) *Server {
	return &Server{
		cfg:     opts.Cfg,
		bus:     opts.Bus,
		store:   opts.Store,
		engine:  opts.Engine,
		metrics: opts.Metrics,
		ws:      ws.NewHandler(opts.Bus, opts.Cfg.Server.Cors.AllowOrigins),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/ws", s.ws)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/engine/state", s.handleEngineState)
	api.HandleFunc("/api/v1/accounts", s.handleAccounts)
	api.HandleFunc("/api/v1/passes", s.handlePasses)
	api.HandleFunc("/api/v1/passes/", s.handlePassOutcomes)

	mux.Handle("/api/", corsMiddleware(s.cfg.Server.Cors, api))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleEngineState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.engine == nil {
		writeJSON(w, http.StatusOK, map[string]any{"data": model.EngineState{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.engine.State()})
}

type accountView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Line  int    `json:"line"`
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	out := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountView{ID: a.ID, Label: a.Label, Line: a.Line})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, err := parseInt(r.URL.Query().Get("limit"), 20)
	if err != nil || limit <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid limit"})
		return
	}
	passes, err := s.store.ListPasses(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if passes == nil {
		passes = []model.PassSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": passes})
}

// handlePassOutcomes serves /api/v1/passes/{id}/outcomes.
func (s *Server) handlePassOutcomes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/passes/")
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" || tail != "outcomes" {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	outcomes, err := s.store.ListOutcomes(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if len(outcomes) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "pass not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": outcomes})
}

func parseInt(v string, def int) (int, error) {
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	return strconv.Atoi(strings.TrimSpace(v))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
