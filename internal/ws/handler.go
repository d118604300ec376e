package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tapfarm/internal/logbus"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Handler streams bus messages to browsers: the backlog first, then live
// messages. Query "types" limits message types (comma separated) and
// "level" drops log lines below that level.
type Handler struct {
	bus          *logbus.Bus
	allowOrigins []string
	upgrader     websocket.Upgrader
}

func NewHandler(bus *logbus.Bus, allowOrigins []string) *Handler {
	h := &Handler{
		bus:          bus,
		allowOrigins: allowOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	return h
}

type filter struct {
	types    map[string]bool
	minLevel int
}

func parseFilter(r *http.Request) filter {
	f := filter{}
	if raw := strings.TrimSpace(r.URL.Query().Get("types")); raw != "" {
		f.types = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.types[t] = true
			}
		}
	}
	if rank, ok := levelRank[strings.ToLower(r.URL.Query().Get("level"))]; ok {
		f.minLevel = rank
	}
	return f
}

func (f filter) allows(msg logbus.Message) bool {
	if f.types != nil && !f.types[msg.Type] {
		return false
	}
	if d, ok := msg.Data.(logbus.LogData); ok && f.minLevel > 0 {
		return levelRank[d.Level] >= f.minLevel
	}
	return true
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		http.Error(w, "log stream unavailable", http.StatusServiceUnavailable)
		return
	}
	f := parseFilter(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := h.bus.Subscribe(256)
	defer cancel()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	for _, msg := range h.bus.Snapshot() {
		if !f.allows(msg) {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !f.allows(msg) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
