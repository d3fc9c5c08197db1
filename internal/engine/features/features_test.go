package features

import (
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"FlowGuard/internal/engine/flowtable"
	"FlowGuard/internal/model"
)

func TestNames_Literal(t *testing.T) {
	want := []string{
		"Destination Port", "Flow Duration", "Total Fwd Packets", "Total Backward Packets",
		"Total Length of Fwd Packets", "Total Length of Bwd Packets", "Fwd Packet Length Max",
		"Fwd Packet Length Min", "Fwd Packet Length Mean", "Fwd Packet Length Std",
		"Bwd Packet Length Max", "Bwd Packet Length Min", "Bwd Packet Length Mean",
		"Bwd Packet Length Std", "Flow Bytes/s", "Flow Packets/s", "Flow IAT Mean", "Flow IAT Std",
		"Flow IAT Max", "Flow IAT Min", "Fwd IAT Total", "Fwd IAT Mean", "Fwd IAT Std", "Fwd IAT Max",
		"Fwd IAT Min", "Bwd IAT Total", "Bwd IAT Mean", "Bwd IAT Std", "Bwd IAT Max", "Bwd IAT Min",
		"Fwd PSH Flags", "Bwd PSH Flags", "Fwd URG Flags", "Bwd URG Flags", "Fwd Header Length",
		"Bwd Header Length", "Fwd Packets/s", "Bwd Packets/s", "Min Packet Length",
		"Max Packet Length", "Packet Length Mean", "Packet Length Std", "Packet Length Variance",
		"FIN Flag Count", "SYN Flag Count", "RST Flag Count", "PSH Flag Count", "ACK Flag Count",
		"URG Flag Count", "CWE Flag Count", "ECE Flag Count", "Down/Up Ratio", "Average Packet Size",
		"Avg Fwd Segment Size", "Avg Bwd Segment Size", "Fwd Header Length", "Fwd Avg Bytes/Bulk",
		"Fwd Avg Packets/Bulk", "Fwd Avg Bulk Rate", "Bwd Avg Bytes/Bulk", "Bwd Avg Packets/Bulk",
		"Bwd Avg Bulk Rate", "Subflow Fwd Packets", "Subflow Fwd Bytes", "Subflow Bwd Packets",
		"Subflow Bwd Bytes", "Init_Win_bytes_forward", "Init_Win_bytes_backward", "act_data_pkt_fwd",
		"min_seg_size_forward", "Active Mean", "Active Std", "Active Max", "Active Min", "Idle Mean",
		"Idle Std", "Idle Max", "Idle Min",
	}
	if len(want) != NumFeatures {
		t.Fatalf("reference list has %d names, want %d", len(want), NumFeatures)
	}
	for i, name := range want {
		if Names[i] != name {
			t.Errorf("Names[%d] = %q, want %q", i, Names[i], name)
		}
	}
	var v Vector
	if got := len(v.Values()); got != NumFeatures {
		t.Errorf("len(Values()) = %d, want %d", got, NumFeatures)
	}
}

func TestValues_FollowNames(t *testing.T) {
	v := Vector{
		DestinationPort:  1,
		FlowDuration:     2,
		FwdHeaderLength:  35,
		DownUpRatio:      52,
		FwdHeaderLength1: 56,
		IdleMin:          78,
	}
	vals := v.Values()
	checks := map[int]float64{0: 1, 1: 2, 34: 35, 51: 52, 55: 56, 77: 78}
	for idx, want := range checks {
		if vals[idx] != want {
			t.Errorf("Values()[%d] (%s) = %v, want %v", idx, Names[idx], vals[idx], want)
		}
	}
}

func TestSafeDivide(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{10, 2, 5},
		{10, 0, 0},
		{0, 0, 0},
		{10, math.Inf(1), 0},
		{10, math.Inf(-1), 0},
		{10, math.NaN(), 0},
		{math.Inf(1), 2, 0},
		{math.NaN(), 2, 0},
		{math.MaxFloat64, 1e-300, 0},
	}
	for _, tt := range tests {
		got := SafeDivide(tt.a, tt.b)
		if got != tt.want || math.IsNaN(got) {
			t.Errorf("SafeDivide(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCalcStats(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Stats
	}{
		{"empty", nil, Stats{}},
		{"only non-finite", []float64{math.NaN(), math.Inf(1)}, Stats{}},
		{"single", []float64{7}, Stats{Max: 7, Min: 7, Mean: 7, Total: 7}},
		{"population std", []float64{2, 4, 4, 4, 5, 5, 7, 9}, Stats{Max: 9, Min: 2, Mean: 5, Std: 2, Total: 40}},
		{"non-finite skipped", []float64{1, math.Inf(-1), 3}, Stats{Max: 3, Min: 1, Mean: 2, Std: 1, Total: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calcStats(tt.values); got != tt.want {
				t.Errorf("calcStats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func drainOne(t *testing.T, table *flowtable.Table) *flowtable.Record {
	t.Helper()
	recs := table.Drain(flowtable.All)
	if len(recs) != 1 {
		t.Fatalf("Drain(All) returned %d records, want 1", len(recs))
	}
	return recs[0]
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func TestExtract_TwoPacketExchange(t *testing.T) {
	a, b := net.IP{10, 1, 1, 1}, net.IP{10, 1, 1, 2}
	start := time.Unix(1700000000, 0)
	table := flowtable.New(4)
	table.Upsert(&model.PacketInfo{
		Timestamp:    start,
		FiveTuple:    model.FiveTuple{SrcIP: a, DstIP: b, SrcPort: 43000, DstPort: 80, Protocol: 6},
		Length:       100,
		HeaderLength: 40,
		Transport:    model.TransportTCP,
		Flags:        model.TCPFlags{ACK: true},
		Window:       512,
	}, 0)
	table.Upsert(&model.PacketInfo{
		Timestamp:    start.Add(10 * time.Millisecond),
		FiveTuple:    model.FiveTuple{SrcIP: b, DstIP: a, SrcPort: 80, DstPort: 43000, Protocol: 6},
		Length:       150,
		HeaderLength: 40,
		Transport:    model.TransportTCP,
		Flags:        model.TCPFlags{ACK: true},
		Window:       1024,
	}, 0)

	v, err := Extract(drainOne(t, table))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	checks := []struct {
		name      string
		got, want float64
	}{
		{"Destination Port", v.DestinationPort, 80},
		{"Total Fwd Packets", v.TotalFwdPackets, 1},
		{"Total Backward Packets", v.TotalBackwardPackets, 1},
		{"Flow Duration", v.FlowDuration, 10000},
		{"Flow Bytes/s", v.FlowBytesPerSec, 25000},
		{"Flow Packets/s", v.FlowPacketsPerSec, 200},
		{"Down/Up Ratio", v.DownUpRatio, 1},
		{"Average Packet Size", v.AveragePacketSize, 125},
		{"Flow IAT Mean", v.FlowIATMean, 10000},
		{"Fwd IAT Total", v.FwdIATTotal, 0},
		{"Packet Length Std", v.PacketLengthStd, 25},
		{"Packet Length Variance", v.PacketLengthVariance, 625},
		{"Init_Win_bytes_forward", v.InitWinBytesForward, 512},
		{"Init_Win_bytes_backward", v.InitWinBytesBackward, 1024},
		{"act_data_pkt_fwd", v.ActDataPktFwd, 1},
		{"min_seg_size_forward", v.MinSegSizeForward, 100},
		{"Fwd Header Length.1", v.FwdHeaderLength1, v.FwdHeaderLength},
		{"Subflow Bwd Bytes", v.SubflowBwdBytes, 150},
		{"Fwd Avg Bulk Rate", v.FwdAvgBulkRate, 0},
		{"Active Mean", v.ActiveMean, 0},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestExtract_SinglePacketFloorsDuration(t *testing.T) {
	table := flowtable.New(4)
	table.Upsert(&model.PacketInfo{
		Timestamp: time.Unix(1700000000, 0),
		FiveTuple: model.FiveTuple{SrcIP: net.IP{1, 1, 1, 1}, DstIP: net.IP{2, 2, 2, 2}, SrcPort: 1, DstPort: 53, Protocol: 17},
		Length:    0,
		Transport: model.TransportUDP,
	}, 0)

	v, err := Extract(drainOne(t, table))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !approx(v.FlowDuration, 1) {
		t.Errorf("Flow Duration = %v, want 1", v.FlowDuration)
	}
	if v.DownUpRatio != 0 || v.AvgBwdSegmentSize != 0 {
		t.Errorf("expected zero ratios without backward packets, got %v/%v", v.DownUpRatio, v.AvgBwdSegmentSize)
	}
	if v.MinSegSizeForward != 20 {
		t.Errorf("min_seg_size_forward = %v, want 20", v.MinSegSizeForward)
	}
	for i, x := range v.Values() {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Errorf("%s is not finite: %v", Names[i], x)
		}
	}
}

func TestExtract_InconsistentRecord(t *testing.T) {
	if _, err := Extract(nil); !errors.Is(err, ErrInconsistentRecord) {
		t.Errorf("Extract(nil) error = %v, want ErrInconsistentRecord", err)
	}
	if _, err := Extract(&flowtable.Record{Key: "empty"}); !errors.Is(err, ErrInconsistentRecord) {
		t.Errorf("Extract(empty) error = %v, want ErrInconsistentRecord", err)
	}
	start := time.Unix(1700000000, 0)
	backwards := &flowtable.Record{Key: "backwards", FwdPackets: 1, StartTime: start, LastSeen: start.Add(-time.Second)}
	if _, err := Extract(backwards); !errors.Is(err, ErrInconsistentRecord) {
		t.Errorf("Extract(backwards) error = %v, want ErrInconsistentRecord", err)
	}
}
