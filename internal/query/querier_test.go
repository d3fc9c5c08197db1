package query

import (
	"strings"
	"testing"
	"time"
)

func TestFlowsQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args := flowsQuery(FlowFilter{Label: "DDoS", SrcIP: "10.0.0.1", Since: since, MaliciousOnly: true, Limit: 20})

	if !strings.Contains(q, "WHERE Label = ? AND SrcIP = ? AND Timestamp >= ? AND IsMalicious") {
		t.Errorf("unexpected where clause:\n%s", q)
	}
	if !strings.HasSuffix(q, "ORDER BY Timestamp DESC LIMIT 20") {
		t.Errorf("unexpected tail:\n%s", q)
	}
	if len(args) != 3 || args[0] != "DDoS" || args[1] != "10.0.0.1" || args[2] != since {
		t.Errorf("args = %v", args)
	}
}

func TestFlowsQuery_DefaultsAndLimitCap(t *testing.T) {
	for _, limit := range []int{0, -5, maxLimit + 1} {
		q, args := flowsQuery(FlowFilter{Limit: limit})
		if strings.Contains(q, "WHERE") || len(args) != 0 {
			t.Errorf("limit %d: unexpected filter %q %v", limit, q, args)
		}
		if !strings.HasSuffix(q, "LIMIT 100") {
			t.Errorf("limit %d: got %q", limit, q)
		}
	}
}

func TestAttacksQuery(t *testing.T) {
	q, args := attacksQuery(time.Time{})
	if strings.Contains(q, "Timestamp >= ?") || len(args) != 0 {
		t.Errorf("zero since should not filter: %q %v", q, args)
	}
	q, args = attacksQuery(time.Unix(1, 0))
	if !strings.Contains(q, "WHERE IsMalicious AND Timestamp >= ?") || len(args) != 1 {
		t.Errorf("unexpected query %q %v", q, args)
	}
}
