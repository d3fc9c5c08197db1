package alerter

import "FlowGuard/internal/telemetry"

type metricFunc func(prev, cur telemetry.Snapshot) float64

func delta(a, b uint64) float64 {
	if b < a {
		return 0
	}
	return float64(b - a)
}

var metrics = map[string]metricFunc{
	"packets": func(p, c telemetry.Snapshot) float64 { return delta(p.Packets.Total, c.Packets.Total) },
	"total_flows": func(p, c telemetry.Snapshot) float64 {
		return delta(p.Flows.Total, c.Flows.Total)
	},
	"malicious_flows": func(p, c telemetry.Snapshot) float64 {
		return delta(p.Flows.Malicious, c.Flows.Malicious)
	},
	"alerts": func(p, c telemetry.Snapshot) float64 { return delta(p.Flows.Alerts, c.Flows.Alerts) },
	// malicious_rate is the malicious share of the flows finalized during the interval, in percent.
	"malicious_rate": func(p, c telemetry.Snapshot) float64 {
		total := delta(p.Flows.Total, c.Flows.Total)
		if total == 0 {
			return 0
		}
		return delta(p.Flows.Malicious, c.Flows.Malicious) * 100 / total
	},
	"classifier_errors": func(p, c telemetry.Snapshot) float64 {
		return delta(p.Errors.Classifier, c.Errors.Classifier)
	},
	"sink_failures": func(p, c telemetry.Snapshot) float64 { return delta(p.Errors.Sink, c.Errors.Sink) },
	"parse_errors":  func(p, c telemetry.Snapshot) float64 { return delta(p.Errors.Parse, c.Errors.Parse) },
	"active_flows":  func(_, c telemetry.Snapshot) float64 { return float64(c.ActiveFlows) },
}

var operators = map[string]func(v, threshold float64) bool{
	">":  func(v, t float64) bool { return v > t },
	">=": func(v, t float64) bool { return v >= t },
	"<":  func(v, t float64) bool { return v < t },
	"<=": func(v, t float64) bool { return v <= t },
	"==": func(v, t float64) bool { return v == t },
}
