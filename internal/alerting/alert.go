package alerting

import (
	"math"
	"sort"
	"time"

	"FlowGuard/internal/engine/features"
	"FlowGuard/internal/engine/flowtable"
	"FlowGuard/internal/model"
)

// TopProbabilities is the number of class probabilities carried by an alert.
const TopProbabilities = 5

// NewAlert builds the alert record of a malicious flow.
func NewAlert(rec *flowtable.Record, vec *features.Vector, pred *model.Prediction, geo model.GeoInfo) *model.Alert {
	severity := Severity(pred)
	return &model.Alert{
		FlowID:    string(rec.Key),
		Timestamp: rec.StartTime.Format(time.RFC3339Nano),

		Prediction:         pred.Label,
		AttackType:         pred.Label,
		Confidence:         pred.Confidence,
		IsMalicious:        pred.IsMalicious(),
		SeverityScore:      severity,
		RecommendedAction:  RecommendedAction(severity),
		ClassProbabilities: topN(pred.Probabilities, TopProbabilities),

		SrcIP:          rec.SrcIP.String(),
		SrcPort:        rec.SrcPort,
		SrcCountry:     geo.CountryCode,
		SrcCountryName: geo.CountryName,
		SrcCity:        geo.City,
		SrcLatitude:    geo.Latitude,
		SrcLongitude:   geo.Longitude,

		DstIP:   rec.DstIP.String(),
		DstPort: rec.DstPort,

		Protocol:       ProtocolName(rec.Protocol),
		ProtocolNumber: rec.Protocol,

		Duration:     round(rec.LastSeen.Sub(rec.StartTime).Seconds(), 3),
		TotalPackets: rec.Packets(),
		TotalBytes:   rec.Bytes(),
		FwdPackets:   rec.FwdPackets,
		BwdPackets:   rec.BwdPackets,
		FwdBytes:     rec.FwdBytes,
		BwdBytes:     rec.BwdBytes,

		FlowStartTime: rec.StartTime.Format(time.RFC3339Nano),
		FlowEndTime:   rec.LastSeen.Format(time.RFC3339Nano),

		FlowBytesPerSec:   round(vec.FlowBytesPerSec, 2),
		FlowPacketsPerSec: round(vec.FlowPacketsPerSec, 2),
		FlowIATMean:       round(vec.FlowIATMean, 2),

		TCPFlags: model.TCPFlagSummary{
			SYN: rec.SYNCount,
			FIN: rec.FINCount,
			RST: rec.RSTCount,
			PSH: rec.PSHCount,
			ACK: rec.ACKCount,
		},

		ProcessingTimeMs: round(pred.ProcessingTime, 2),
	}
}

type labelProb struct {
	label string
	p     float64
}

// sortedProbabilities orders probabilities descending, ties broken by label.
func sortedProbabilities(probs map[string]float64) []labelProb {
	out := make([]labelProb, 0, len(probs))
	for label, p := range probs {
		out = append(out, labelProb{label, p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].p != out[j].p {
			return out[i].p > out[j].p
		}
		return out[i].label < out[j].label
	})
	return out
}

func topN(probs map[string]float64, n int) map[string]float64 {
	sorted := sortedProbabilities(probs)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make(map[string]float64, len(sorted))
	for _, lp := range sorted {
		out[lp.label] = lp.p
	}
	return out
}

func round(v float64, places int) float64 {
	k := math.Pow(10, float64(places))
	return math.Round(v*k) / k
}
