// Package query reads classified flows back from the ClickHouse feature store.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FlowGuard/internal/config"
	"FlowGuard/internal/output"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const maxLimit = 1000

// AttackSummary aggregates the stored flows of one label.
type AttackSummary struct {
	Label         string    `json:"label"`
	Flows         uint64    `json:"flows"`
	AvgConfidence float64   `json:"avg_confidence"`
	MaxSeverity   float64   `json:"max_severity"`
	LastSeen      time.Time `json:"last_seen"`
}

// FlowRow is one stored flow without its feature vector.
type FlowRow struct {
	Timestamp  time.Time `json:"timestamp"`
	FlowID     string    `json:"flow_id"`
	SrcIP      string    `json:"src_ip"`
	DstIP      string    `json:"dst_ip"`
	SrcPort    uint16    `json:"src_port"`
	DstPort    uint16    `json:"dst_port"`
	Protocol   uint8     `json:"protocol"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Severity   float64   `json:"severity"`
}

// FlowFilter selects stored flows. Zero fields do not filter.
type FlowFilter struct {
	Label         string
	SrcIP         string
	DstIP         string
	Since         time.Time
	MaliciousOnly bool
	Limit         int
}

// Querier answers read queries over stored flows.
type Querier interface {
	Attacks(ctx context.Context, since time.Time) ([]AttackSummary, error)
	Flows(ctx context.Context, f FlowFilter) ([]FlowRow, error)
	Close() error
}

type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := output.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

// Attacks summarizes malicious flows per label.
func (q *clickhouseQuerier) Attacks(ctx context.Context, since time.Time) ([]AttackSummary, error) {
	query, args := attacksQuery(since)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []AttackSummary
	for rows.Next() {
		var s AttackSummary
		if err := rows.Scan(&s.Label, &s.Flows, &s.AvgConfidence, &s.MaxSeverity, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan attack summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Flows lists stored flows, newest first.
func (q *clickhouseQuerier) Flows(ctx context.Context, f FlowFilter) ([]FlowRow, error) {
	query, args := flowsQuery(f)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []FlowRow
	for rows.Next() {
		var r FlowRow
		if err := rows.Scan(&r.Timestamp, &r.FlowID, &r.SrcIP, &r.DstIP, &r.SrcPort, &r.DstPort,
			&r.Protocol, &r.Label, &r.Confidence, &r.Severity); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}

func attacksQuery(since time.Time) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT
			Label,
			count() AS Flows,
			avg(Confidence) AS AvgConfidence,
			max(Severity) AS MaxSeverity,
			max(Timestamp) AS LastSeen
		FROM flow_features
		WHERE IsMalicious`)
	var args []any
	if !since.IsZero() {
		b.WriteString(" AND Timestamp >= ?")
		args = append(args, since)
	}
	b.WriteString(`
		GROUP BY Label
		ORDER BY Flows DESC`)
	return b.String(), args
}

func flowsQuery(f FlowFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT Timestamp, FlowID, SrcIP, DstIP, SrcPort, DstPort, Protocol, Label, Confidence, Severity
		FROM flow_features`)

	var where []string
	var args []any
	if f.Label != "" {
		where = append(where, "Label = ?")
		args = append(args, f.Label)
	}
	if f.SrcIP != "" {
		where = append(where, "SrcIP = ?")
		args = append(args, f.SrcIP)
	}
	if f.DstIP != "" {
		where = append(where, "DstIP = ?")
		args = append(args, f.DstIP)
	}
	if !f.Since.IsZero() {
		where = append(where, "Timestamp >= ?")
		args = append(args, f.Since)
	}
	if f.MaliciousOnly {
		where = append(where, "IsMalicious")
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	limit := f.Limit
	if limit <= 0 || limit > maxLimit {
		limit = 100
	}
	fmt.Fprintf(&b, " ORDER BY Timestamp DESC LIMIT %d", limit)
	return b.String(), args
}
