// Package alerting turns classified flows into alert records.
package alerting

import (
	"math"
	"strconv"

	"FlowGuard/internal/model"
)

const defaultBaseSeverity = 6.0

var baseSeverity = map[string]float64{
	"DDoS":         9.0,
	"DoS":          8.5,
	"Infiltration": 9.5,
	"Botnet":       9.0,
	"Web Attack":   7.0,
	"Brute Force":  7.5,
	"PortScan":     5.0,
	"Port Scan":    5.0,
	"Bot":          6.0,
	"FTP-Patator":  7.0,
	"SSH-Patator":  7.5,
	"Heartbleed":   9.0,
}

// Recommended actions, from most to least severe.
const (
	ActionBlock   = "block"
	ActionMonitor = "monitor"
	ActionLog     = "log"
	ActionIgnore  = "ignore"
)

// Severity scores a prediction on a 0-10 scale, rounded to one decimal. Benign traffic scores 0.
func Severity(p *model.Prediction) float64 {
	if p == nil || !p.IsMalicious() {
		return 0
	}
	base, ok := baseSeverity[p.Label]
	if !ok {
		base = defaultBaseSeverity
	}
	return math.Round(base*p.Confidence*10) / 10
}

// RecommendedAction maps a severity score to an operator action.
func RecommendedAction(severity float64) string {
	switch {
	case severity >= 8:
		return ActionBlock
	case severity >= 6:
		return ActionMonitor
	case severity >= 3:
		return ActionLog
	default:
		return ActionIgnore
	}
}

var protocolNames = map[uint8]string{
	1:   "ICMP",
	6:   "TCP",
	17:  "UDP",
	41:  "IPv6",
	47:  "GRE",
	50:  "ESP",
	51:  "AH",
	89:  "OSPF",
	132: "SCTP",
}

// ProtocolName returns the IANA name of an IP protocol number, or "Protocol-<n>".
func ProtocolName(proto uint8) string {
	if name, ok := protocolNames[proto]; ok {
		return name
	}
	return "Protocol-" + strconv.Itoa(int(proto))
}
