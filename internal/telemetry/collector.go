package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowguard"

// Collector exposes Stats snapshots as Prometheus metrics.
type Collector struct {
	snapshot func() Snapshot

	packetsDesc     *prometheus.Desc
	flowsDesc       *prometheus.Desc
	activeFlowsDesc *prometheus.Desc
	alertsDesc      *prometheus.Desc
	errorsDesc      *prometheus.Desc
	sinkPostsDesc   *prometheus.Desc
	attacksDesc     *prometheus.Desc
	uptimeDesc      *prometheus.Desc
}

// NewCollector builds a collector that reads a fresh snapshot on every scrape.
func NewCollector(snapshot func() Snapshot) *Collector {
	return &Collector{
		snapshot:        snapshot,
		packetsDesc:     prometheus.NewDesc(namespace+"_packets_total", "Packets ingested, by transport", []string{"transport"}, nil),
		flowsDesc:       prometheus.NewDesc(namespace+"_flows_total", "Finalized and classified flows, by verdict", []string{"verdict"}, nil),
		activeFlowsDesc: prometheus.NewDesc(namespace+"_active_flows", "Flows currently tracked in the flow table", nil, nil),
		alertsDesc:      prometheus.NewDesc(namespace+"_alerts_total", "Malicious flows above the confidence threshold", nil, nil),
		errorsDesc:      prometheus.NewDesc(namespace+"_errors_total", "Errors, by category", []string{"category"}, nil),
		sinkPostsDesc:   prometheus.NewDesc(namespace+"_sink_posts_total", "Alerts delivered to remote sinks", nil, nil),
		attacksDesc:     prometheus.NewDesc(namespace+"_attacks_total", "Malicious flows, by predicted label", []string{"label"}, nil),
		uptimeDesc:      prometheus.NewDesc(namespace+"_uptime_seconds", "Seconds since the engine started", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packetsDesc
	ch <- c.flowsDesc
	ch <- c.activeFlowsDesc
	ch <- c.alertsDesc
	ch <- c.errorsDesc
	ch <- c.sinkPostsDesc
	ch <- c.attacksDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.packetsDesc, s.Packets.TCP, "tcp")
	counter(c.packetsDesc, s.Packets.UDP, "udp")
	counter(c.packetsDesc, s.Packets.ICMP, "icmp")
	counter(c.packetsDesc, s.Packets.Other, "other")

	counter(c.flowsDesc, s.Flows.Benign, "benign")
	counter(c.flowsDesc, s.Flows.Malicious, "malicious")
	counter(c.alertsDesc, s.Flows.Alerts)
	counter(c.sinkPostsDesc, s.SinkPosts)

	counter(c.errorsDesc, s.Errors.Parse, "parse")
	counter(c.errorsDesc, s.Errors.Extraction, "extraction")
	counter(c.errorsDesc, s.Errors.Classifier, "classifier")
	counter(c.errorsDesc, s.Errors.Geo, "geo")
	counter(c.errorsDesc, s.Errors.Output, "output")
	counter(c.errorsDesc, s.Errors.Sink, "sink")

	for label, n := range s.AttackTypes {
		counter(c.attacksDesc, n, label)
	}

	ch <- prometheus.MustNewConstMetric(c.activeFlowsDesc, prometheus.GaugeValue, float64(s.ActiveFlows))
	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, s.UptimeSeconds)
}
