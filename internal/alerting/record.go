package alerting

import (
	"strconv"
	"time"

	"FlowGuard/internal/model"
)

// SummaryHeader is the fixed column order of the malicious flow summary CSV.
var SummaryHeader = []string{
	"Timestamp", "Flow_ID", "Prediction", "Confidence", "Is_Malicious", "Severity_Score",
	"Recommended_Action", "Src_IP", "Src_Port", "Src_Country", "Src_Country_Name", "Src_City",
	"Src_Latitude", "Src_Longitude", "Dst_IP", "Dst_Port", "Protocol", "Protocol_Number",
	"Duration", "Total_Packets", "Total_Bytes", "Fwd_Packets", "Bwd_Packets",
	"Flow_Bytes_Per_Sec", "Flow_Packets_Per_Sec",
}

const summaryTimeLayout = "2006-01-02 15:04:05"

// SummaryRow renders an alert in SummaryHeader order.
func SummaryRow(a *model.Alert) []string {
	ts := a.Timestamp
	if t, err := time.Parse(time.RFC3339Nano, a.Timestamp); err == nil {
		ts = t.Format(summaryTimeLayout)
	}
	return []string{
		ts,
		a.FlowID,
		a.Prediction,
		strconv.FormatFloat(a.Confidence, 'f', 4, 64),
		strconv.FormatBool(a.IsMalicious),
		strconv.FormatFloat(a.SeverityScore, 'f', 1, 64),
		a.RecommendedAction,
		a.SrcIP,
		strconv.Itoa(int(a.SrcPort)),
		a.SrcCountry,
		a.SrcCountryName,
		a.SrcCity,
		formatFloat(a.SrcLatitude),
		formatFloat(a.SrcLongitude),
		a.DstIP,
		strconv.Itoa(int(a.DstPort)),
		a.Protocol,
		strconv.Itoa(int(a.ProtocolNumber)),
		formatFloat(a.Duration),
		strconv.FormatUint(a.TotalPackets, 10),
		strconv.FormatUint(a.TotalBytes, 10),
		strconv.FormatUint(a.FwdPackets, 10),
		strconv.FormatUint(a.BwdPackets, 10),
		formatFloat(a.FlowBytesPerSec),
		formatFloat(a.FlowPacketsPerSec),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
