package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FlowGuard/internal/engine/sketch"
	"FlowGuard/internal/model"
	"FlowGuard/internal/query"
	"FlowGuard/internal/telemetry"

	"go.uber.org/zap/zaptest"
)

type fakeQuerier struct {
	filter query.FlowFilter
}

func (q *fakeQuerier) Attacks(context.Context, time.Time) ([]query.AttackSummary, error) {
	return []query.AttackSummary{{Label: "DDoS", Flows: 4}}, nil
}

func (q *fakeQuerier) Flows(_ context.Context, f query.FlowFilter) ([]query.FlowRow, error) {
	q.filter = f
	return []query.FlowRow{{FlowID: "a", Label: f.Label}}, nil
}

func (q *fakeQuerier) Close() error { return nil }

func newTestServer(t *testing.T, querier query.Querier) (*Server, *telemetry.Stats) {
	t.Helper()
	return newTestServerWithSketch(t, querier, nil)
}

func newTestServerWithSketch(t *testing.T, querier query.Querier, tracker *sketch.Tracker) (*Server, *telemetry.Stats) {
	t.Helper()
	stats := telemetry.NewStats()
	s, err := NewServer(":0", func() telemetry.Snapshot { return stats.Snapshot(3) }, querier, tracker, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s, stats
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthAndStats(t *testing.T) {
	s, stats := newTestServer(t, nil)
	stats.FlowsTotal.Add(4)
	stats.FlowsMalicious.Add(1)
	stats.RecordAttack("PortScan")

	rec := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"active_flows":3`) {
		t.Errorf("/health = %d %s", rec.Code, rec.Body.String())
	}

	rec = get(t, s.Handler(), "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("/stats = %d", rec.Code)
	}
	var body struct {
		Flows struct {
			Total uint64 `json:"total"`
		} `json:"flows"`
		MaliciousRate float64 `json:"malicious_rate_pct"`
		TopAttacks    []struct {
			Label string `json:"label"`
		} `json:"top_attacks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Flows.Total != 4 || body.MaliciousRate != 25 || len(body.TopAttacks) != 1 || body.TopAttacks[0].Label != "PortScan" {
		t.Errorf("/stats body = %s", rec.Body.String())
	}

	// Store routes are absent without a querier.
	if rec := get(t, s.Handler(), "/api/v1/flows"); rec.Code != http.StatusNotFound {
		t.Errorf("/api/v1/flows without querier = %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	s, stats := newTestServer(t, nil)
	stats.PacketsTCP.Add(7)

	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `flowguard_packets_total{transport="tcp"} 7`) {
		t.Errorf("/metrics missing the tcp packet counter:\n%s", rec.Body.String())
	}
}

func TestFlowRoutes(t *testing.T) {
	q := &fakeQuerier{}
	s, _ := newTestServer(t, q)

	rec := get(t, s.Handler(), "/api/v1/flows?label=DDoS&malicious=true&limit=5&since=1h")
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/v1/flows = %d %s", rec.Code, rec.Body.String())
	}
	if q.filter.Label != "DDoS" || !q.filter.MaliciousOnly || q.filter.Limit != 5 || q.filter.Since.IsZero() {
		t.Errorf("filter = %+v", q.filter)
	}

	if rec := get(t, s.Handler(), "/api/v1/flows?limit=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", rec.Code)
	}
	if rec := get(t, s.Handler(), "/api/v1/attacks?since=yesterday"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since = %d", rec.Code)
	}
	rec = get(t, s.Handler(), "/api/v1/attacks")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"label":"DDoS"`) {
		t.Errorf("/api/v1/attacks = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSketchRoute(t *testing.T) {
	tracker := sketch.NewTracker(sketch.Config{TalkerThreshold: 1, SpreadThreshold: 1})
	tracker.Observe(&model.PacketInfo{FiveTuple: model.FiveTuple{
		SrcIP: net.ParseIP("198.51.100.9"), DstIP: net.ParseIP("10.0.0.1"), DstPort: 22, Protocol: 6,
	}})
	tracker.Rotate()

	s, _ := newTestServerWithSketch(t, nil, tracker)
	rec := get(t, s.Handler(), "/api/v1/sketch")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"source":"198.51.100.9"`) {
		t.Errorf("/api/v1/sketch = %d %s", rec.Code, rec.Body.String())
	}

	s, _ = newTestServer(t, nil)
	if rec := get(t, s.Handler(), "/api/v1/sketch"); rec.Code != http.StatusNotFound {
		t.Errorf("/api/v1/sketch without tracker = %d", rec.Code)
	}
}
