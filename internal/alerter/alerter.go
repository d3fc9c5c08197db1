// Package alerter periodically evaluates threshold rules against the engine counters and mails a
// digest of the rules that fired.
package alerter

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"FlowGuard/internal/config"
	"FlowGuard/internal/model"
	"FlowGuard/internal/telemetry"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"go.uber.org/zap"
)

const aiTimeout = 60 * time.Second

// SnapshotFunc returns the current engine telemetry.
type SnapshotFunc func() telemetry.Snapshot

// Alerter evaluates rules against the counter deltas of each check interval.
type Alerter struct {
	rules         []config.AlerterRule
	snapshot      SnapshotFunc
	notifier      model.Notifier
	analyzer      model.Analyzer
	checkInterval time.Duration
	logger        *zap.Logger

	prev     telemetry.Snapshot
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAlerter validates the rules and creates an alerter. analyzer may be nil.
func NewAlerter(cfg config.AlerterConfig, snapshot SnapshotFunc, notifier model.Notifier, analyzer model.Analyzer, logger *zap.Logger) (*Alerter, error) {
	if cfg.CheckInterval.Std() <= 0 {
		return nil, fmt.Errorf("alerter check_interval must be positive")
	}
	if notifier == nil {
		return nil, fmt.Errorf("alerter requires a notifier")
	}
	for _, r := range cfg.Rules {
		if _, ok := metrics[r.Metric]; !ok {
			return nil, fmt.Errorf("rule %q: unknown metric %q", r.Name, r.Metric)
		}
		if _, ok := operators[r.Operator]; !ok {
			return nil, fmt.Errorf("rule %q: unknown operator %q", r.Name, r.Operator)
		}
	}
	return &Alerter{
		rules:         cfg.Rules,
		snapshot:      snapshot,
		notifier:      notifier,
		analyzer:      analyzer,
		checkInterval: cfg.CheckInterval.Std(),
		logger:        logger,
		prev:          snapshot(),
		stopChan:      make(chan struct{}),
	}, nil
}

// Start launches the evaluation loop.
func (a *Alerter) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.Check()
			case <-a.stopChan:
				return
			}
		}
	}()
	a.logger.Info("Alerter started", zap.Duration("check_interval", a.checkInterval), zap.Int("rules", len(a.rules)))
}

// Stop ends the loop and runs one last check over the remaining interval.
func (a *Alerter) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.wg.Wait()
		a.Check()
		a.logger.Info("Alerter stopped")
	})
}

// Check evaluates every rule against the deltas since the previous check and, if any rule
// fires, sends one digest. It returns the number of rules that fired.
func (a *Alerter) Check() int {
	cur := a.snapshot()
	prev := a.prev
	a.prev = cur

	var fired []string
	for _, r := range a.rules {
		value := metrics[r.Metric](prev, cur)
		if operators[r.Operator](value, r.Threshold) {
			fired = append(fired, fmt.Sprintf("%s: %s = %g (%s %g)", r.Name, r.Metric, value, r.Operator, r.Threshold))
		}
	}
	if len(fired) == 0 {
		return 0
	}
	a.logger.Info("Alert rules triggered", zap.Int("count", len(fired)))

	body := a.render(fired, cur)
	subject := fmt.Sprintf("FlowGuard Alert Summary (%d Triggered)", len(fired))
	if err := a.notifier.Send(subject, body); err != nil {
		a.logger.Error("Failed to send alert digest", zap.Error(err))
	} else {
		a.logger.Info("Alert digest sent")
	}
	return len(fired)
}

func (a *Alerter) render(fired []string, cur telemetry.Snapshot) string {
	var b strings.Builder
	b.WriteString("<h1>FlowGuard Alert Summary</h1>")
	b.WriteString("<p>The following rules were triggered during the last check:</p><ul>")
	for _, f := range fired {
		b.WriteString("<li>" + html.EscapeString(f) + "</li>")
	}
	b.WriteString("</ul>")

	if top := cur.TopAttacks(5); len(top) > 0 {
		b.WriteString("<h2>Top attack types</h2><table><tr><th>Label</th><th>Flows</th></tr>")
		for _, t := range top {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td></tr>", html.EscapeString(t.Label), t.Count)
		}
		b.WriteString("</table>")
	}
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(cur.Line()))

	if analysis := a.analyze(fired, cur); analysis != "" {
		b.WriteString("<hr><h2>AI-Powered Analysis</h2>")
		b.Write(renderMarkdown(analysis))
	}
	return b.String()
}

func (a *Alerter) analyze(fired []string, cur telemetry.Snapshot) string {
	if a.analyzer == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
	defer cancel()

	input := strings.Join(fired, "\n") + "\n" + cur.Line()
	out, err := a.analyzer.AnalyzeTraffic(ctx, input)
	if err != nil {
		a.logger.Warn("AI analysis failed", zap.Error(err))
		return ""
	}
	return out
}

// renderMarkdown converts model output to HTML, dropping any raw HTML it contains.
func renderMarkdown(md string) []byte {
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.SkipHTML | mdhtml.Safelink,
	})
	return markdown.ToHTML([]byte(md), nil, renderer)
}
