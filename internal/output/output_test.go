package output

import (
	"encoding/csv"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FlowGuard/internal/alerting"
	"FlowGuard/internal/engine/features"
	"FlowGuard/internal/model"

	"go.uber.org/zap/zaptest"
)

func sampleResults() []model.FlowResult {
	vec := make([]float64, features.NumFeatures)
	vec[0] = 80
	vec[1] = 10000
	tuple := model.FiveTuple{SrcIP: net.IP{10, 0, 0, 1}, DstIP: net.IP{10, 0, 0, 2}, SrcPort: 5555, DstPort: 80, Protocol: 6}
	return []model.FlowResult{
		{
			FlowID:     "10.0.0.1:5555-10.0.0.2:80-6",
			FiveTuple:  tuple,
			Features:   vec,
			Prediction: &model.Prediction{Label: model.BenignLabel, Confidence: 0.99},
		},
		{
			FlowID:     "10.0.0.1:5556-10.0.0.2:80-6",
			FiveTuple:  tuple,
			Features:   vec,
			Prediction: &model.Prediction{Label: "DDoS", Confidence: 0.9},
			Alert: &model.Alert{
				FlowID:            "10.0.0.1:5556-10.0.0.2:80-6",
				Timestamp:         time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339Nano),
				Prediction:        "DDoS",
				AttackType:        "DDoS",
				Confidence:        0.9,
				IsMalicious:       true,
				SeverityScore:     8.1,
				RecommendedAction: alerting.ActionBlock,
			},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse %s: %v", path, err)
	}
	return rows
}

func TestFeatureCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ml_features.csv")
	w, err := NewFeatureCSVWriter(path)
	if err != nil {
		t.Fatalf("NewFeatureCSVWriter() error = %v", err)
	}
	if err := w.Write(sampleResults()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening appends without a second header.
	w, err = NewFeatureCSVWriter(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if err := w.Write(sampleResults()[:1]); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	w.Close()

	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}
	if len(rows[0]) != features.NumFeatures || rows[0][0] != "Destination Port" || rows[0][55] != "Fwd Header Length" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "80" || rows[1][1] != "10000" {
		t.Errorf("unexpected first row: %v", rows[1][:2])
	}
}

func TestSummaryCSVWriter_OnlyAlerts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all_flows.csv")
	w, err := NewSummaryCSVWriter(path)
	if err != nil {
		t.Fatalf("NewSummaryCSVWriter() error = %v", err)
	}
	if err := w.Write(sampleResults()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	w.Close()

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if rows[1][0] != "2024-01-02 03:04:05" || rows[1][2] != "DDoS" || rows[1][6] != "block" {
		t.Errorf("unexpected row: %v", rows[1])
	}
}

func TestJSONAlertWriter_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "malicious_flows.json")
	w, err := NewJSONAlertWriter(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewJSONAlertWriter() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := w.Write(sampleResults()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Write(sampleResults()[:1]); err != nil {
		t.Fatalf("Write() without alerts error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var alerts []model.Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		t.Fatalf("file is not a JSON array: %v", err)
	}
	if len(alerts) != 2 || alerts[1].AttackType != "DDoS" || alerts[1].SeverityScore != 8.1 {
		t.Errorf("unexpected alerts: %+v", alerts)
	}
}

func TestJSONAlertWriter_MovesCorruptFileAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "malicious_flows.json")
	corrupt := []byte("{not json")
	if err := os.WriteFile(path, corrupt, 0644); err != nil {
		t.Fatal(err)
	}
	w, _ := NewJSONAlertWriter(path, zaptest.NewLogger(t))
	if err := w.Write(sampleResults()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	var alerts []model.Alert
	if err := json.Unmarshal(data, &alerts); err != nil || len(alerts) != 1 {
		t.Fatalf("expected a fresh array with one alert, got %q (%v)", data, err)
	}

	kept, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("corrupt file was not kept: %v", err)
	}
	if string(kept) != string(corrupt) {
		t.Errorf("kept file = %q, want %q", kept, corrupt)
	}
}

func TestClickHouseRow(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	r := sampleResults()[1]
	cols := row(ts, &r)
	if len(cols) != 14 {
		t.Fatalf("row has %d columns, want 14", len(cols))
	}
	if cols[9] != "DDoS" || cols[11] != true || cols[12] != 8.1 {
		t.Errorf("unexpected verdict columns: %v %v %v", cols[9], cols[11], cols[12])
	}
	if got := cols[13].([]float64); len(got) != features.NumFeatures {
		t.Errorf("features column has %d values", len(got))
	}
}
