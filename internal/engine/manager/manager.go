// Package manager drives the flow table: it ingests packets, runs the flush scheduler and pushes
// every finalized flow through extraction, classification, alerting and persistence.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"FlowGuard/internal/alerting"
	"FlowGuard/internal/config"
	"FlowGuard/internal/engine/features"
	"FlowGuard/internal/engine/flowtable"
	"FlowGuard/internal/engine/protocol"
	"FlowGuard/internal/engine/sketch"
	"FlowGuard/internal/model"
	"FlowGuard/internal/telemetry"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"go.uber.org/zap"
)

// Options are the engine parameters.
type Options struct {
	FlowTimeout         time.Duration
	SaveInterval        time.Duration
	ActivityTimeout     time.Duration
	StatsInterval       time.Duration
	ClassifyTimeout     time.Duration
	SinkTimeout         time.Duration
	ConfidenceThreshold float64
	NumShards           uint32
	// PacketClock makes the idle check use the newest packet timestamp instead of the wall clock.
	PacketClock bool
}

// OptionsFromConfig extracts the engine options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FlowTimeout:         cfg.Engine.FlowTimeout.Std(),
		SaveInterval:        cfg.Engine.SaveInterval.Std(),
		ActivityTimeout:     cfg.Engine.ActivityTimeout.Std(),
		StatsInterval:       cfg.Engine.StatsInterval.Std(),
		ClassifyTimeout:     cfg.Classifier.Timeout.Std(),
		SinkTimeout:         cfg.Backend.Timeout.Std(),
		ConfidenceThreshold: cfg.Engine.ConfidenceThreshold,
		NumShards:           cfg.Engine.NumShards,
		PacketClock:         cfg.Engine.PacketClock || cfg.Capture.Source == "pcap",
	}
}

// Deps are the collaborators of the finalization pipeline. Only Classifier is required.
type Deps struct {
	Classifier model.Classifier
	Geo        model.GeoLocator
	Sinks      []model.AlertSink
	Writers    []model.Writer
	// LogSink, when set, receives the periodic status line and alert banners.
	LogSink model.LogSink
	// Console, when set, receives the human-readable alert banner.
	Console io.Writer
	Stats   *telemetry.Stats
	// Sketch, when set, observes every packet and is rotated with each periodic summary.
	Sketch *sketch.Tracker
}

// Manager implements model.Engine.
type Manager struct {
	opts   Options
	deps   Deps
	table  *flowtable.Table
	stats  *telemetry.Stats
	logger *zap.Logger

	// latest holds the newest packet timestamp in unix nanoseconds.
	latest atomic.Int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	// sweepMu serializes sweeps so that a periodic sweep and the shutdown sweep never interleave
	// their output batches.
	sweepMu sync.Mutex
}

var _ model.Engine = (*Manager)(nil)

// NewManager creates a manager. It does not start any goroutine.
func NewManager(opts Options, deps Deps, logger *zap.Logger) (*Manager, error) {
	if deps.Classifier == nil {
		return nil, fmt.Errorf("manager requires a classifier")
	}
	if opts.FlowTimeout <= 0 || opts.SaveInterval <= 0 {
		return nil, fmt.Errorf("flow timeout and save interval must be positive, got %s and %s",
			opts.FlowTimeout, opts.SaveInterval)
	}
	if opts.ClassifyTimeout <= 0 {
		opts.ClassifyTimeout = 2 * time.Second
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 2 * time.Second
	}
	stats := deps.Stats
	if stats == nil {
		stats = telemetry.NewStats()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:   opts,
		deps:   deps,
		table:  flowtable.New(opts.NumShards),
		stats:  stats,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start launches the flush loop and, when a stats interval is configured, the telemetry loop.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.runFlusher()
	m.logger.Info("Started flush scheduler",
		zap.Duration("save_interval", m.opts.SaveInterval),
		zap.Duration("flow_timeout", m.opts.FlowTimeout),
		zap.Bool("packet_clock", m.opts.PacketClock))

	if m.opts.StatsInterval > 0 {
		m.wg.Add(1)
		go m.runReporter()
	}
}

// Stop cancels the background loops, waits for them and then finalizes every live flow.
// It is safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.logger.Info("Manager stopping...")
		m.cancel()
		m.wg.Wait()

		n := m.sweep(flowtable.All)
		m.logger.Info("Forced flush completed", zap.Int("flows", n))
		telemetry.LogSummary(m.logger, "Final statistics", m.Snapshot())
		m.logger.Info("Manager stopped")
	})
}

// Ingest folds one parsed packet into its flow.
func (m *Manager) Ingest(info *model.PacketInfo) {
	m.stats.PacketsTotal.Add(1)
	switch info.Transport {
	case model.TransportTCP:
		m.stats.PacketsTCP.Add(1)
	case model.TransportUDP:
		m.stats.PacketsUDP.Add(1)
	case model.TransportICMP:
		m.stats.PacketsICMP.Add(1)
	default:
		m.stats.PacketsOther.Add(1)
	}

	m.observe(info.Timestamp)
	m.table.Upsert(info, m.opts.ActivityTimeout)
	if m.deps.Sketch != nil {
		m.deps.Sketch.Observe(info)
	}
}

// IngestPacket parses a decoded packet and ingests it. Well-formed packets without an IP layer
// are counted and dropped; packets that failed to decode are counted as parse errors.
func (m *Manager) IngestPacket(p gopacket.Packet) {
	info, err := protocol.ParsePacket(p)
	if err != nil {
		m.dropped(err)
		return
	}
	m.Ingest(info)
}

// IngestFrame decodes a raw link-layer frame and ingests it.
func (m *Manager) IngestFrame(data []byte, linkType layers.LinkType, ts time.Time) {
	info, err := protocol.ParseFrame(data, linkType, ts)
	if err != nil {
		m.dropped(err)
		return
	}
	m.Ingest(info)
}

func (m *Manager) dropped(err error) {
	if errors.Is(err, protocol.ErrNoNetworkLayer) {
		m.stats.PacketsTotal.Add(1)
		m.stats.PacketsOther.Add(1)
		return
	}
	m.stats.ParseErrors.Add(1)
}

// ActiveFlows returns the number of live flows.
func (m *Manager) ActiveFlows() int {
	return m.table.Len()
}

// Snapshot returns the current telemetry.
func (m *Manager) Snapshot() telemetry.Snapshot {
	return m.stats.Snapshot(m.table.Len())
}

// Stats exposes the live counters.
func (m *Manager) Stats() *telemetry.Stats {
	return m.stats
}

// Sweep finalizes every flow that is idle or terminated at the engine's current time and
// returns how many flows were drained.
func (m *Manager) Sweep() int {
	return m.sweep(flowtable.IdleOrTerminated(m.now(), m.opts.FlowTimeout))
}

func (m *Manager) observe(ts time.Time) {
	ns := ts.UnixNano()
	for {
		cur := m.latest.Load()
		if ns <= cur || m.latest.CompareAndSwap(cur, ns) {
			return
		}
	}
}

func (m *Manager) now() time.Time {
	if m.opts.PacketClock {
		if ns := m.latest.Load(); ns != 0 {
			return time.Unix(0, ns)
		}
	}
	return time.Now()
}

func (m *Manager) runFlusher() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Flushed flows", zap.Int("flows", n), zap.Int("active", m.table.Len()))
			}
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) runReporter() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := m.Snapshot()
			telemetry.LogSummary(m.logger, "Statistics", snap)
			m.sendLog("[STATS] " + snap.Line())
			if m.deps.Sketch != nil {
				r := m.deps.Sketch.Rotate()
				m.logger.Info("Traffic sketch",
					zap.Any("top_talkers", r.TopTalkers),
					zap.Any("spreaders", r.Spreaders))
			}
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) sweep(pred func(*flowtable.Record) bool) int {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	drained := m.table.Drain(pred)
	if len(drained) == 0 {
		return 0
	}

	results := make([]model.FlowResult, 0, len(drained))
	for _, rec := range drained {
		if res, ok := m.finalize(rec); ok {
			results = append(results, res)
		}
	}
	m.persist(results)
	return len(drained)
}

// finalize runs one drained record through extraction, classification and alerting. It reports
// false when the flow was skipped.
func (m *Manager) finalize(rec *flowtable.Record) (model.FlowResult, bool) {
	vec, err := features.Extract(rec)
	if err != nil {
		m.stats.ExtractionErrors.Add(1)
		m.logger.Warn("Feature extraction failed", zap.String("flow", string(rec.Key)), zap.Error(err))
		return model.FlowResult{}, false
	}
	values := vec.Values()

	pred, err := m.classify(values)
	if err != nil {
		m.stats.ClassifierErrors.Add(1)
		m.logger.Warn("Classification failed", zap.String("flow", string(rec.Key)), zap.Error(err))
		return model.FlowResult{}, false
	}

	m.stats.FlowsTotal.Add(1)
	if pred.IsMalicious() {
		m.stats.FlowsMalicious.Add(1)
		m.stats.RecordAttack(pred.Label)
	} else {
		m.stats.FlowsBenign.Add(1)
	}

	res := model.FlowResult{
		FlowID: string(rec.Key),
		FiveTuple: model.FiveTuple{
			SrcIP:    rec.SrcIP,
			DstIP:    rec.DstIP,
			SrcPort:  rec.SrcPort,
			DstPort:  rec.DstPort,
			Protocol: rec.Protocol,
		},
		StartTime:  rec.StartTime,
		EndTime:    rec.LastSeen,
		Features:   values,
		Prediction: pred,
	}

	if pred.IsMalicious() && pred.Confidence >= m.opts.ConfidenceThreshold {
		res.Alert = alerting.NewAlert(rec, &vec, pred, m.locate(rec))
		m.stats.Alerts.Add(1)
		delivered := m.deliver(res.Alert)
		if m.deps.Console != nil {
			fmt.Fprint(m.deps.Console, alerting.Format(res.Alert, delivered))
		}
		m.sendLog(fmt.Sprintf("[ALERT] %s from %s:%d to %s:%d (confidence %.1f%%, severity %.1f)",
			res.Alert.AttackType, res.Alert.SrcIP, res.Alert.SrcPort, res.Alert.DstIP, res.Alert.DstPort,
			res.Alert.Confidence*100, res.Alert.SeverityScore))
	}
	return res, true
}

func (m *Manager) classify(values []float64) (*model.Prediction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ClassifyTimeout)
	defer cancel()

	start := time.Now()
	pred, err := m.deps.Classifier.Classify(ctx, values)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return nil, fmt.Errorf("classifier returned no prediction")
	}
	if pred.ProcessingTime == 0 {
		pred.ProcessingTime = float64(time.Since(start).Microseconds()) / 1000
	}
	return pred, nil
}

func (m *Manager) locate(rec *flowtable.Record) model.GeoInfo {
	if m.deps.Geo == nil {
		return model.UnknownGeo()
	}
	info, err := m.deps.Geo.Lookup(rec.SrcIP)
	if err != nil {
		m.stats.GeoErrors.Add(1)
		return model.UnknownGeo()
	}
	return info
}

// deliver publishes the alert to every sink and reports whether at least one accepted it.
func (m *Manager) deliver(alert *model.Alert) bool {
	delivered := false
	for _, sink := range m.deps.Sinks {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.SinkTimeout)
		err := sink.Send(ctx, alert)
		cancel()
		if err != nil {
			m.stats.SinkFailures.Add(1)
			m.logger.Warn("Alert delivery failed", zap.String("sink", sink.Name()),
				zap.String("flow", alert.FlowID), zap.Error(err))
			continue
		}
		m.stats.SinkPosts.Add(1)
		delivered = true
	}
	return delivered
}

func (m *Manager) persist(results []model.FlowResult) {
	if len(results) == 0 {
		return
	}
	for _, w := range m.deps.Writers {
		if err := w.Write(results); err != nil {
			m.stats.OutputErrors.Add(1)
			m.logger.Error("Failed to write flow results", zap.Int("flows", len(results)), zap.Error(err))
		}
	}
}

func (m *Manager) sendLog(message string) {
	if m.deps.LogSink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.deps.LogSink.SendLog(ctx, message); err != nil {
		m.logger.Debug("Failed to forward log line", zap.Error(err))
	}
}
