// Package api serves the engine status over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"FlowGuard/internal/engine/sketch"
	"FlowGuard/internal/query"
	"FlowGuard/internal/telemetry"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the status API.
type Server struct {
	srv      *http.Server
	snapshot func() telemetry.Snapshot
	querier  query.Querier
	sketch   *sketch.Tracker
	logger   *zap.Logger
}

// NewServer builds the router. querier and tracker may be nil, in which case their routes are
// not registered.
func NewServer(addr string, snapshot func() telemetry.Snapshot, querier query.Querier, tracker *sketch.Tracker, logger *zap.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(telemetry.NewCollector(snapshot)); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	s := &Server{snapshot: snapshot, querier: querier, sketch: tracker, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	if tracker != nil {
		r.HandleFunc("/api/v1/sketch", s.sketchHandler).Methods(http.MethodGet)
	}
	if querier != nil {
		r.HandleFunc("/api/v1/attacks", s.attacksHandler).Methods(http.MethodGet)
		r.HandleFunc("/api/v1/flows", s.flowsHandler).Methods(http.MethodGet)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("API server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_flows": s.snapshot().ActiveFlows,
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot()
	writeJSON(w, http.StatusOK, struct {
		telemetry.Snapshot
		MaliciousRate float64                 `json:"malicious_rate_pct"`
		TopAttacks    []telemetry.AttackCount `json:"top_attacks"`
	}{snap, snap.MaliciousRate(), snap.TopAttacks(10)})
}

func (s *Server) sketchHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sketch.Last())
}

func (s *Server) attacksHandler(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := s.querier.Attacks(r.Context(), since)
	if err != nil {
		s.logger.Warn("Attack query failed", zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	f := query.FlowFilter{
		Label:         q.Get("label"),
		SrcIP:         q.Get("src_ip"),
		DstIP:         q.Get("dst_ip"),
		Since:         since,
		MaliciousOnly: q.Get("malicious") == "true",
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}
	out, err := s.querier.Flows(r.Context(), f)
	if err != nil {
		s.logger.Warn("Flow query failed", zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// parseSince reads the optional "since" parameter, either RFC3339 or a Go duration such as "1h"
// meaning that long ago.
func parseSince(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("since")
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return time.Now().Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.New("invalid since: want RFC3339 or a duration")
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
