package alerting

import (
	"fmt"
	"strings"

	"FlowGuard/internal/model"
)

// Format renders an alert as the multi-line console banner. delivered reports whether any
// remote sink accepted the alert.
func Format(a *model.Alert, delivered bool) string {
	rule := strings.Repeat("=", 70)
	backend := "not delivered (saved locally)"
	if delivered {
		backend = "delivered"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n  MALICIOUS TRAFFIC DETECTED\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Attack Type: %s\n", a.AttackType)
	fmt.Fprintf(&b, "Confidence: %.1f%% | Severity: %.1f/10\n", a.Confidence*100, a.SeverityScore)
	fmt.Fprintf(&b, "Action: %s\n", strings.ToUpper(a.RecommendedAction))
	fmt.Fprintf(&b, "Source: %s:%d (%s, %s)\n", a.SrcIP, a.SrcPort, a.SrcCity, a.SrcCountry)
	fmt.Fprintf(&b, "Destination: %s:%d\n", a.DstIP, a.DstPort)
	fmt.Fprintf(&b, "Protocol: %s | Packets: %d | Bytes: %d\n", a.Protocol, a.TotalPackets, a.TotalBytes)
	fmt.Fprintf(&b, "Remote sinks: %s\n", backend)
	b.WriteString("Top Probabilities:\n")
	probs := sortedProbabilities(a.ClassProbabilities)
	if len(probs) > 3 {
		probs = probs[:3]
	}
	for _, lp := range probs {
		fmt.Fprintf(&b, "  - %s: %.1f%%\n", lp.label, lp.p*100)
	}
	b.WriteString(rule)
	b.WriteString("\n")
	return b.String()
}
