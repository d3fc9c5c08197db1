package alerter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"FlowGuard/internal/config"
	"FlowGuard/internal/telemetry"

	"go.uber.org/zap/zaptest"
)

type recordingNotifier struct {
	subjects []string
	bodies   []string
}

func (n *recordingNotifier) Send(subject, body string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

type stubAnalyzer struct {
	out string
	err error
}

func (s stubAnalyzer) AnalyzeTraffic(context.Context, string) (string, error) {
	return s.out, s.err
}

func alerterConfig(rules ...config.AlerterRule) config.AlerterConfig {
	return config.AlerterConfig{
		Enabled:       true,
		CheckInterval: config.Duration(time.Hour),
		Rules:         rules,
	}
}

func TestNewAlerter_Validation(t *testing.T) {
	stats := telemetry.NewStats()
	snap := func() telemetry.Snapshot { return stats.Snapshot(0) }
	logger := zaptest.NewLogger(t)

	bad := alerterConfig(config.AlerterRule{Name: "x", Metric: "nope", Operator: ">", Threshold: 1})
	if _, err := NewAlerter(bad, snap, &recordingNotifier{}, nil, logger); err == nil {
		t.Error("expected an error for an unknown metric")
	}
	bad = alerterConfig(config.AlerterRule{Name: "x", Metric: "packets", Operator: "~", Threshold: 1})
	if _, err := NewAlerter(bad, snap, &recordingNotifier{}, nil, logger); err == nil {
		t.Error("expected an error for an unknown operator")
	}
	if _, err := NewAlerter(alerterConfig(), snap, nil, nil, logger); err == nil {
		t.Error("expected an error without a notifier")
	}
}

func TestAlerter_CheckUsesDeltas(t *testing.T) {
	stats := telemetry.NewStats()
	stats.FlowsTotal.Add(100)
	stats.FlowsMalicious.Add(50)

	n := &recordingNotifier{}
	a, err := NewAlerter(alerterConfig(
		config.AlerterRule{Name: "attack burst", Metric: "malicious_flows", Operator: ">=", Threshold: 5},
		config.AlerterRule{Name: "high rate", Metric: "malicious_rate", Operator: ">", Threshold: 40},
	), func() telemetry.Snapshot { return stats.Snapshot(0) }, n, stubAnalyzer{out: "**check the firewall**"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewAlerter() error = %v", err)
	}

	// Counts accumulated before the alerter started do not fire.
	if fired := a.Check(); fired != 0 {
		t.Fatalf("Check() = %d on unchanged counters", fired)
	}

	stats.FlowsTotal.Add(10)
	stats.FlowsMalicious.Add(6)
	stats.RecordAttack("DDoS")
	if fired := a.Check(); fired != 2 {
		t.Fatalf("Check() = %d, want 2", fired)
	}
	if len(n.bodies) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(n.bodies))
	}
	body := n.bodies[0]
	for _, want := range []string{"attack burst", "malicious_rate = 60", "<td>DDoS</td>", "<strong>check the firewall</strong>"} {
		if !strings.Contains(body, want) {
			t.Errorf("digest missing %q:\n%s", want, body)
		}
	}
	if !strings.Contains(n.subjects[0], "(2 Triggered)") {
		t.Errorf("subject = %q", n.subjects[0])
	}

	if fired := a.Check(); fired != 0 {
		t.Errorf("Check() = %d with no new activity", fired)
	}
}

func TestAlerter_AnalyzerFailureStillSends(t *testing.T) {
	stats := telemetry.NewStats()
	n := &recordingNotifier{}
	a, err := NewAlerter(alerterConfig(
		config.AlerterRule{Name: "sink down", Metric: "sink_failures", Operator: ">", Threshold: 0},
	), func() telemetry.Snapshot { return stats.Snapshot(0) }, n, stubAnalyzer{err: errors.New("quota")}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	a.Start()
	stats.SinkFailures.Add(3)
	a.Stop()

	if len(n.bodies) != 1 {
		t.Fatalf("notifier called %d times, want 1 from the final check", len(n.bodies))
	}
	if strings.Contains(n.bodies[0], "AI-Powered Analysis") {
		t.Error("digest contains an analysis section although the analyzer failed")
	}
}

func TestAlerter_AnalysisRawHTMLIsDropped(t *testing.T) {
	stats := telemetry.NewStats()
	n := &recordingNotifier{}
	analysis := "<script>alert(1)</script>\n\nBlock **203.0.113.66** now <img src=\"x\" onerror=\"alert(2)\">\n"
	a, err := NewAlerter(alerterConfig(
		config.AlerterRule{Name: "attack burst", Metric: "malicious_flows", Operator: ">=", Threshold: 1},
	), func() telemetry.Snapshot { return stats.Snapshot(0) }, n, stubAnalyzer{out: analysis}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	stats.FlowsMalicious.Add(1)
	if fired := a.Check(); fired != 1 {
		t.Fatalf("Check() = %d, want 1", fired)
	}

	body := n.bodies[0]
	for _, bad := range []string{"<script", "<img"} {
		if strings.Contains(body, bad) {
			t.Errorf("digest contains %q: %s", bad, body)
		}
	}
	if !strings.Contains(body, "<strong>203.0.113.66</strong>") {
		t.Errorf("digest lost the rendered markdown: %s", body)
	}
}
