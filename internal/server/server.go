// Package server exposes an operator surface over one engine: ranked
// search, collection stats, a full graph dump, a websocket event feed and a
// manual extraction trigger. It is an operator convenience, not part of the
// retrieval core; the hosting runtime talks to the engine directly.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/vega-holdings/voxta-graphmemory-dev/internal/config"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/engine"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/llm"
	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

// Server serves the inspection API for one engine.
type Server struct {
	engine    *engine.Engine
	extractor *llm.ExtractionService
	cfg       *config.Config
	hub       *EventHub
	http      *http.Server
}

// New creates the server and registers it as the engine's event sink.
// extractor may be nil, disabling the extraction trigger.
func New(eng *engine.Engine, cfg *config.Config, extractor *llm.ExtractionService) *Server {
	s := &Server{
		engine:    eng,
		extractor: extractor,
		cfg:       cfg,
		hub:       NewEventHub(),
	}
	eng.SetEventSink(func(ev engine.Event) { s.hub.Broadcast(ev) })

	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/graph", s.handleGraph)
	mux.HandleFunc("/api/extract", s.handleExtract)
	mux.HandleFunc("/ws", s.hub.Handler)

	limiter := NewRateLimiter(20, 40)
	handler := RateLimitMiddleware(RequireAuth(mux, cfg), limiter)

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving the API.
func (s *Server) ListenAndServe() error {
	log.Printf("server: inspection API on %s", s.http.Addr)
	return s.http.ListenAndServe()
}

// Close shuts the server down immediately.
func (s *Server) Close() error {
	return s.http.Close()
}

// handleSearch runs a ranked query: GET /api/search?q=dragon+cave&chat=c1.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	terms := strings.Fields(r.URL.Query().Get("q"))
	items := s.engine.Query(terms, r.URL.Query().Get("chat"))
	writeJSON(w, map[string]interface{}{
		"count": len(items),
		"items": items,
	})
}

// handleStats reports collection sizes: GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	entities, relations, lore := s.engine.Store().Stats()
	writeJSON(w, map[string]interface{}{
		"path":      s.engine.Store().Path(),
		"entities":  entities,
		"relations": relations,
		"lore":      lore,
	})
}

// handleGraph dumps the three collections: GET /api/graph.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	st := s.engine.Store()
	writeJSON(w, map[string]interface{}{
		"entities":  st.Entities(),
		"relations": st.Relations(),
		"lore":      st.Lore(),
	})
}

// handleExtract triggers a background extraction round over a transcript:
// POST /api/extract {"chatId": "c1", "transcript": "..."}.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.extractor == nil {
		http.Error(w, `{"error":"extraction disabled"}`, http.StatusServiceUnavailable)
		return
	}
	var req struct {
		ChatID     string `json:"chatId"`
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Transcript) == "" {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	// The round outlives the request; the request context would cancel it
	// the moment the handler returns.
	scope := types.Scope{ChatID: req.ChatID}
	if !s.extractor.TryExtract(context.Background(), req.ChatID, req.Transcript, scope) {
		http.Error(w, `{"error":"extraction already in flight for this conversation"}`,
			http.StatusConflict)
		return
	}
	// Headers are frozen once the status is written.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{"started": true})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}
