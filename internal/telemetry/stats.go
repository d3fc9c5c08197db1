// Package telemetry keeps the engine's cumulative counters and reports them.
package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds the cumulative counters of one engine run. All methods are safe for concurrent use.
type Stats struct {
	started time.Time

	PacketsTotal atomic.Uint64
	PacketsTCP   atomic.Uint64
	PacketsUDP   atomic.Uint64
	PacketsICMP  atomic.Uint64
	PacketsOther atomic.Uint64

	FlowsTotal     atomic.Uint64
	FlowsBenign    atomic.Uint64
	FlowsMalicious atomic.Uint64
	Alerts         atomic.Uint64

	ParseErrors      atomic.Uint64
	ExtractionErrors atomic.Uint64
	ClassifierErrors atomic.Uint64
	GeoErrors        atomic.Uint64
	OutputErrors     atomic.Uint64
	SinkPosts        atomic.Uint64
	SinkFailures     atomic.Uint64

	mu          sync.Mutex
	attackTypes map[string]uint64
}

// NewStats returns a zeroed Stats whose uptime starts now.
func NewStats() *Stats {
	return &Stats{
		started:     time.Now(),
		attackTypes: make(map[string]uint64),
	}
}

// RecordAttack increments the histogram bucket for label.
func (s *Stats) RecordAttack(label string) {
	s.mu.Lock()
	s.attackTypes[label]++
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Timestamp     time.Time         `json:"timestamp"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	ActiveFlows   int               `json:"active_flows"`
	Packets       PacketCounts      `json:"packets"`
	Flows         FlowCounts        `json:"flows"`
	Errors        ErrorCounts       `json:"errors"`
	SinkPosts     uint64            `json:"sink_posts"`
	AttackTypes   map[string]uint64 `json:"attack_types"`
}

// PacketCounts breaks the packet total down by transport.
type PacketCounts struct {
	Total uint64 `json:"total"`
	TCP   uint64 `json:"tcp"`
	UDP   uint64 `json:"udp"`
	ICMP  uint64 `json:"icmp"`
	Other uint64 `json:"other"`
}

// FlowCounts holds the finalized flow counters.
type FlowCounts struct {
	Total     uint64 `json:"total"`
	Benign    uint64 `json:"benign"`
	Malicious uint64 `json:"malicious"`
	Alerts    uint64 `json:"alerts"`
}

// ErrorCounts holds one counter per error category.
type ErrorCounts struct {
	Parse      uint64 `json:"parse"`
	Extraction uint64 `json:"extraction"`
	Classifier uint64 `json:"classifier"`
	Geo        uint64 `json:"geo"`
	Output     uint64 `json:"output"`
	Sink       uint64 `json:"sink"`
}

// Snapshot copies the counters. activeFlows is the current flow table size.
func (s *Stats) Snapshot(activeFlows int) Snapshot {
	now := time.Now()
	snap := Snapshot{
		Timestamp:     now,
		UptimeSeconds: now.Sub(s.started).Seconds(),
		ActiveFlows:   activeFlows,
		Packets: PacketCounts{
			Total: s.PacketsTotal.Load(),
			TCP:   s.PacketsTCP.Load(),
			UDP:   s.PacketsUDP.Load(),
			ICMP:  s.PacketsICMP.Load(),
			Other: s.PacketsOther.Load(),
		},
		Flows: FlowCounts{
			Total:     s.FlowsTotal.Load(),
			Benign:    s.FlowsBenign.Load(),
			Malicious: s.FlowsMalicious.Load(),
			Alerts:    s.Alerts.Load(),
		},
		Errors: ErrorCounts{
			Parse:      s.ParseErrors.Load(),
			Extraction: s.ExtractionErrors.Load(),
			Classifier: s.ClassifierErrors.Load(),
			Geo:        s.GeoErrors.Load(),
			Output:     s.OutputErrors.Load(),
			Sink:       s.SinkFailures.Load(),
		},
		SinkPosts: s.SinkPosts.Load(),
	}

	s.mu.Lock()
	snap.AttackTypes = make(map[string]uint64, len(s.attackTypes))
	for k, v := range s.attackTypes {
		snap.AttackTypes[k] = v
	}
	s.mu.Unlock()
	return snap
}

// MaliciousRate is the share of finalized flows classified as malicious, in percent.
func (s Snapshot) MaliciousRate() float64 {
	if s.Flows.Total == 0 {
		return 0
	}
	return float64(s.Flows.Malicious) / float64(s.Flows.Total) * 100
}

// TopAttacks returns up to n attack labels ordered by count, then name.
func (s Snapshot) TopAttacks(n int) []AttackCount {
	out := make([]AttackCount, 0, len(s.AttackTypes))
	for label, count := range s.AttackTypes {
		out = append(out, AttackCount{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// AttackCount is one histogram entry.
type AttackCount struct {
	Label string `json:"label"`
	Count uint64 `json:"count"`
}
