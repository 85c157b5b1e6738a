// Package api provides the HTTP API for observing the decision engine.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/engine"
	"github.com/talgya/statecraft/internal/persistence"
)

const (
	maxSSEConns     = 2
	sseCatchUp      = 50
	defaultLimit    = 50
	maxLimit        = 500
	countryLogLimit = 20

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
	maxMsgSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // CORS handled by middleware
}

// Server serves the engine state over HTTP.
type Server struct {
	Sys       *engine.System
	Scheduler *engine.Scheduler // nil disables the speed control
	DB        *persistence.DB   // nil disables persisted history and snapshots
	RunID     string
	Names     map[country.ID]string
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.
	RelayKey  string // Bearer token for the SSE feed. Empty = feed disabled.

	started  time.Time
	sseConns int32
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	adminLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/countries", s.handleCountries)
	mux.HandleFunc("/api/v1/country/", s.handleCountryDetail)
	mux.HandleFunc("/api/v1/decisions", s.handleDecisions)
	mux.HandleFunc("/api/v1/stream", s.handleWebSocket)

	// SSE feed (GET, requires relay token).
	mux.HandleFunc("/api/v1/events", s.handleEvents)

	// Admin endpoints (POST, require bearer token). GET passes through where supported.
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(RateLimitMiddleware(adminLimiter, s.handleSnapshot)))
	mux.HandleFunc("/api/v1/logs/clear", s.adminOnly(s.handleClearLogs))
	mux.HandleFunc("/api/v1/intervention", s.adminOnly(RateLimitMiddleware(adminLimiter, s.handleIntervention)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request, key string) bool {
	auth := r.Header.Get("Authorization")
	return key != "" && strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == key
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no STATECRAFT_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !bearer(r, s.AdminKey) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) name(id country.ID) string {
	if n, ok := s.Names[id]; ok {
		return n
	}
	return fmt.Sprintf("Country %d", id)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sys.Stats()
	status := map[string]any{
		"name":      "Statecraft",
		"run_id":    s.RunID,
		"tick":      st.Tick,
		"countries": st.Countries,
		"alliances": st.Alliances,
		"logged":    st.Logged,
		"by_kind":   st.ByKind,
		"started":   humanize.Time(s.started),
	}
	if s.Scheduler != nil {
		speed := s.Scheduler.Speed()
		status["speed"] = speed
		status["running"] = speed > 0
	}
	if s.DB != nil && s.RunID != "" {
		if n, err := s.DB.DecisionCount(s.RunID); err == nil {
			status["decisions_stored"] = n
			status["decisions_stored_human"] = humanize.Comma(int64(n))
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	type countrySummary struct {
		ID          country.ID              `json:"id"`
		Name        string                  `json:"name"`
		Military    float64                 `json:"military"`
		GDP         float64                 `json:"gdp"`
		Resources   float64                 `json:"resources"`
		TechLevel   float64                 `json:"tech_level"`
		ThreatIndex float64                 `json:"threat_index"`
		AllyCount   int                     `json:"ally_count"`
		Neighbors   int                     `json:"neighbors"`
		Weights     country.AdaptiveWeights `json:"weights"`
	}

	snap := s.Sys.Snapshot()
	out := make([]countrySummary, 0, len(snap.Countries))
	for _, c := range snap.Countries {
		out = append(out, countrySummary{
			ID:          c.ID,
			Name:        s.name(c.ID),
			Military:    c.Military,
			GDP:         c.GDP,
			Resources:   c.Resources,
			TechLevel:   c.TechLevel,
			ThreatIndex: c.ThreatIndex,
			AllyCount:   c.AllyCount,
			Neighbors:   len(c.Edges),
			Weights:     c.Weights,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleCountryDetail(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/country/")
	n, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		http.Error(w, "invalid country id", http.StatusBadRequest)
		return
	}
	id := country.ID(n)
	c, ok := s.Sys.Country(id)
	if !ok {
		http.Error(w, "country not found", http.StatusNotFound)
		return
	}

	recent := filterCountry(s.Sys.Logs(), id)
	if len(recent) > countryLogLimit {
		recent = recent[len(recent)-countryLogLimit:]
	}
	writeJSON(w, map[string]any{
		"name":      s.name(id),
		"country":   c,
		"decisions": recent,
	})
}

func filterCountry(logs []engine.DecisionLog, id country.ID) []engine.DecisionLog {
	out := make([]engine.DecisionLog, 0)
	for _, l := range logs {
		if l.CountryID == id {
			out = append(out, l)
		}
	}
	return out
}

// handleDecisions returns retained decisions, oldest first. With
// source=db it reads the run's persisted history instead, newest first.
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultLimit
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxLimit {
			limit = n
		}
	}

	var logs []engine.DecisionLog
	if q.Get("source") == "db" {
		if s.DB == nil || s.RunID == "" {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		var err error
		if logs, err = s.DB.RecentDecisions(s.RunID, limit); err != nil {
			slog.Error("recent decisions query failed", "error", err)
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
	} else {
		logs = s.Sys.Logs()
	}

	if cs := q.Get("country"); cs != "" {
		n, err := strconv.ParseUint(cs, 10, 32)
		if err != nil {
			http.Error(w, "invalid country id", http.StatusBadRequest)
			return
		}
		logs = filterCountry(logs, country.ID(n))
	}
	if len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	if logs == nil {
		logs = []engine.DecisionLog{}
	}
	writeJSON(w, logs)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Scheduler == nil {
		http.Error(w, "scheduler not running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Scheduler.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Scheduler.Speed()})
}

// handleSnapshot serves the live world on GET and persists it on POST.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.Sys.Snapshot()
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, snap)
	case http.MethodPost:
		if s.DB == nil || s.RunID == "" {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		if err := s.DB.SaveSnapshot(s.RunID, snap); err != nil {
			slog.Error("snapshot save failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{
			"tick":    snap.Tick,
			"message": "snapshot saved",
		})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cleared := len(s.Sys.Logs())
	s.Sys.ClearLogs()
	slog.Info("decision logs cleared", "count", cleared)
	writeJSON(w, map[string]any{"cleared": cleared})
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Type      string     `json:"type"`
		Country   country.ID `json:"country"`
		Target    country.ID `json:"target,omitempty"`
		Amount    float64    `json:"amount,omitempty"`
		Hostility float64    `json:"hostility,omitempty"`
		Relations float64    `json:"relations,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var (
		desc string
		err  error
	)
	switch req.Type {
	case "provision":
		desc, err = s.Sys.Provision(req.Country, req.Amount)
	case "reinforce":
		desc, err = s.Sys.Reinforce(req.Country, req.Amount)
	case "losses":
		desc, err = s.Sys.RecordLosses(req.Country, req.Amount)
	case "relations":
		desc, err = s.Sys.SetRelations(req.Country, req.Target, req.Hostility, req.Relations)
	default:
		http.Error(w, "unknown intervention type (use: provision, reinforce, losses, relations)", http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, engine.ErrUnknownCountry), errors.Is(err, engine.ErrUnknownEdge):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		writeJSON(w, map[string]any{"success": true, "details": desc})
	}
}

// handleEvents provides an SSE feed of decision logs.
// Requires the relay token and limits concurrent connections.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	if !bearer(r, s.RelayKey) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Sys.Subscribe()
	defer s.Sys.Unsubscribe(subID)

	logs := s.Sys.Logs()
	if len(logs) > sseCatchUp {
		logs = logs[len(logs)-sseCatchUp:]
	}
	for _, l := range logs {
		writeSSEEvent(w, l)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case batch, ok := <-ch:
			if !ok {
				return
			}
			for _, l := range batch {
				writeSSEEvent(w, l)
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSEEvent writes a single decision in SSE format, keyed by action kind.
func writeSSEEvent(w http.ResponseWriter, l engine.DecisionLog) {
	data, err := json.Marshal(l)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", l.Kind, data)
}

// TickMessage is one websocket frame: every decision of one tick.
type TickMessage struct {
	Type      string               `json:"type"`
	Tick      uint64               `json:"tick"`
	Decisions []engine.DecisionLog `json:"decisions"`
}

// handleWebSocket pushes each tick's decisions to an observer. The
// subscription is taken before the upgrade so no tick after the handshake
// is missed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	subID, ch := s.Sys.Subscribe()
	defer s.Sys.Unsubscribe(subID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	slog.Info("websocket observer connected", "sub_id", subID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxMsgSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("websocket unexpected close", "sub_id", subID, "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case batch, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(TickMessage{Type: "tick", Tick: batch[0].Tick, Decisions: batch}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			slog.Info("websocket observer disconnected", "sub_id", subID)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
