package model

import "context"

// TCPFlagSummary is the condensed flag view carried by an alert.
type TCPFlagSummary struct {
	SYN uint64 `json:"syn"`
	FIN uint64 `json:"fin"`
	RST uint64 `json:"rst"`
	PSH uint64 `json:"psh"`
	ACK uint64 `json:"ack"`
}

// Alert is the record published for a malicious flow.
type Alert struct {
	FlowID    string `json:"flow_id"`
	Timestamp string `json:"timestamp"`

	Prediction         string             `json:"prediction"`
	AttackType         string             `json:"attack_type"`
	Confidence         float64            `json:"confidence"`
	IsMalicious        bool               `json:"is_malicious"`
	SeverityScore      float64            `json:"severity_score"`
	RecommendedAction  string             `json:"recommended_action"`
	ClassProbabilities map[string]float64 `json:"class_probabilities"`

	SrcIP          string  `json:"src_ip"`
	SrcPort        uint16  `json:"src_port"`
	SrcCountry     string  `json:"src_country"`
	SrcCountryName string  `json:"src_country_name"`
	SrcCity        string  `json:"src_city"`
	SrcLatitude    float64 `json:"src_latitude"`
	SrcLongitude   float64 `json:"src_longitude"`

	DstIP   string `json:"dst_ip"`
	DstPort uint16 `json:"dst_port"`

	Protocol       string `json:"protocol"`
	ProtocolNumber uint8  `json:"protocol_number"`

	Duration     float64 `json:"duration"`
	TotalPackets uint64  `json:"total_packets"`
	TotalBytes   uint64  `json:"total_bytes"`
	FwdPackets   uint64  `json:"fwd_packets"`
	BwdPackets   uint64  `json:"bwd_packets"`
	FwdBytes     uint64  `json:"fwd_bytes"`
	BwdBytes     uint64  `json:"bwd_bytes"`

	FlowStartTime string `json:"flow_start_time"`
	FlowEndTime   string `json:"flow_end_time"`

	FlowBytesPerSec   float64 `json:"flow_bytes_per_sec"`
	FlowPacketsPerSec float64 `json:"flow_packets_per_sec"`
	FlowIATMean       float64 `json:"flow_iat_mean"`

	TCPFlags TCPFlagSummary `json:"tcp_flags"`

	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// AlertSink delivers alerts to a remote consumer. Implementations must honour ctx deadlines.
type AlertSink interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// LogSink forwards operator-facing status lines to a remote consumer on a best-effort basis.
type LogSink interface {
	SendLog(ctx context.Context, message string) error
}
