package telemetry

import (
	"fmt"

	"go.uber.org/zap"
)

// Line renders the one-line status used for periodic reports and the remote log channel.
func (s Snapshot) Line() string {
	return fmt.Sprintf("Packets: %d | Flows: %d | Malicious: %d (%.1f%%) | Errors: parse=%d extract=%d classify=%d sink=%d",
		s.Packets.Total, s.ActiveFlows, s.Flows.Malicious, s.MaliciousRate(),
		s.Errors.Parse, s.Errors.Extraction, s.Errors.Classifier, s.Errors.Sink)
}

// LogSummary writes the snapshot as a structured log entry.
func LogSummary(logger *zap.Logger, msg string, s Snapshot) {
	logger.Info(msg,
		zap.Float64("uptime_s", s.UptimeSeconds),
		zap.Int("active_flows", s.ActiveFlows),
		zap.Uint64("packets", s.Packets.Total),
		zap.Uint64("packets_tcp", s.Packets.TCP),
		zap.Uint64("packets_udp", s.Packets.UDP),
		zap.Uint64("packets_icmp", s.Packets.ICMP),
		zap.Uint64("packets_other", s.Packets.Other),
		zap.Uint64("flows", s.Flows.Total),
		zap.Uint64("flows_benign", s.Flows.Benign),
		zap.Uint64("flows_malicious", s.Flows.Malicious),
		zap.Float64("malicious_rate_pct", s.MaliciousRate()),
		zap.Uint64("alerts", s.Flows.Alerts),
		zap.Uint64("parse_errors", s.Errors.Parse),
		zap.Uint64("extraction_errors", s.Errors.Extraction),
		zap.Uint64("classifier_errors", s.Errors.Classifier),
		zap.Uint64("geo_errors", s.Errors.Geo),
		zap.Uint64("output_errors", s.Errors.Output),
		zap.Uint64("sink_posts", s.SinkPosts),
		zap.Uint64("sink_failures", s.Errors.Sink),
		zap.Any("top_attacks", s.TopAttacks(5)),
	)
}
