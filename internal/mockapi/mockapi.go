// Package mockapi is an in-process stand-in for the DJDog pet API. It keeps
// per-credential game state so a full farming pass can run locally.
package mockapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tapfarm/internal/model"
)

type Options struct {
	// Prefix is stripped from request paths, e.g. "/mock".
	Prefix       string
	MaxBar       int64
	RegenPerSec  int64
	LevelUpCost  int64
	DefaultTasks []model.Task
}

type player struct {
	bar    int64
	gold   int64
	level  int64
	lastAt time.Time
	tasks  []model.Task
	taps   int
}

type Server struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	players map[string]*player
	fail    map[string]int
	calls   []string
}

func New(opts Options) *Server {
	if opts.MaxBar <= 0 {
		opts.MaxBar = 1000
	}
	if opts.LevelUpCost <= 0 {
		opts.LevelUpCost = 100
	}
	if opts.DefaultTasks == nil {
		opts.DefaultTasks = []model.Task{
			{TaskID: 1, TaskName: "Join channel"},
			{TaskID: 2, TaskName: "Follow on X"},
			{TaskID: 3, TaskName: "Daily check-in", Finished: true},
		}
	}
	return &Server{
		opts:    opts,
		now:     time.Now,
		players: make(map[string]*player),
		fail:    make(map[string]int),
	}
}

// FailNext makes the next n requests to path answer 500.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	s.fail[path] += n
	s.mu.Unlock()
}

// SetBar overrides the current bar amount of a credential.
func (s *Server) SetBar(credential string, available int64) {
	s.mu.Lock()
	s.player(credential).bar = available
	s.mu.Unlock()
}

// Calls returns "METHOD path" for every authorized request, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Server) Gold(credential string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player(credential).gold
}

func (s *Server) player(credential string) *player {
	p := s.players[credential]
	if p == nil {
		p = &player{
			bar:    s.opts.MaxBar,
			level:  1,
			lastAt: s.now(),
			tasks:  append([]model.Task(nil), s.opts.DefaultTasks...),
		}
		s.players[credential] = p
	}
	if s.opts.RegenPerSec > 0 {
		now := s.now()
		if secs := int64(now.Sub(p.lastAt) / time.Second); secs > 0 {
			p.bar += secs * s.opts.RegenPerSec
			if p.bar > s.opts.MaxBar {
				p.bar = s.opts.MaxBar
			}
			p.lastAt = p.lastAt.Add(time.Duration(secs) * time.Second)
		}
	}
	return p
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, s.opts.Prefix)
	if path == "/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	credential := r.Header.Get("Authorization")
	if credential == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"returnCode": 401, "returnDesc": "missing authorization"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, r.Method+" "+path)
	if s.fail[path] > 0 {
		s.fail[path]--
		writeJSON(w, http.StatusInternalServerError, map[string]any{"returnCode": 500, "returnDesc": "injected failure"})
		return
	}
	p := s.player(credential)

	switch {
	case path == "/pet/tap" && r.Method == http.MethodPost:
		clicks, _ := strconv.ParseInt(r.URL.Query().Get("clicks"), 10, 64)
		if clicks > p.bar {
			clicks = p.bar
		}
		p.bar -= clicks
		p.gold += clicks
		p.taps++
		ok(w, map[string]any{"goldAmount": clicks})
	case path == "/pet/barAmount" && r.Method == http.MethodGet:
		ok(w, map[string]any{"availableAmount": p.bar, "maxAmount": s.opts.MaxBar})
	case path == "/pet/boxMall" && r.Method == http.MethodGet:
		ok(w, map[string]any{"level": p.level, "availableAmount": p.gold})
	case path == "/task/list" && r.Method == http.MethodGet:
		ok(w, map[string]any{"taskDetails": p.tasks})
	case path == "/task/finish" && r.Method == http.MethodPost:
		id, _ := strconv.ParseInt(r.URL.Query().Get("taskIds"), 10, 64)
		for i := range p.tasks {
			if p.tasks[i].TaskID == id {
				p.tasks[i].Finished = true
				ok(w, nil)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"returnCode": 404, "returnDesc": "task not found"})
	case strings.HasPrefix(path, "/pet/levelUp/") && r.Method == http.MethodPost:
		cost := p.level * s.opts.LevelUpCost
		if p.gold < cost {
			writeJSON(w, http.StatusOK, map[string]any{"returnCode": 500, "returnDesc": "not enough gold"})
			return
		}
		p.gold -= cost
		p.level++
		ok(w, map[string]any{"level": p.level})
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"returnCode": 200, "returnDesc": "success", "data": data})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) Taps(credential string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player(credential).taps
}
