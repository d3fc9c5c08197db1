package output

import (
	"context"
	"fmt"
	"time"

	"FlowGuard/internal/alerting"
	"FlowGuard/internal/config"
	"FlowGuard/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS flow_features (
    Timestamp   DateTime,
    FlowID      String,
    SrcIP       String,
    DstIP       String,
    SrcPort     UInt16,
    DstPort     UInt16,
    Protocol    UInt8,
    StartTime   DateTime64(6),
    EndTime     DateTime64(6),
    Label       String,
    Confidence  Float64,
    IsMalicious Bool,
    Severity    Float64,
    Features    Array(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Label, Timestamp);
`

// ClickHouseWriter stores every classified flow with its feature vector in ClickHouse.
type ClickHouseWriter struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseWriter connects to ClickHouse and ensures the flow_features table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseWriter, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	logger.Info("Connected to ClickHouse and ensured table exists", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))

	return &ClickHouseWriter{conn: conn, logger: logger}, nil
}

// Connect opens and pings a ClickHouse connection.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Write inserts one sweep's results as a single batch.
func (w *ClickHouseWriter) Write(results []model.FlowResult) error {
	if len(results) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO flow_features")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now()
	for i := range results {
		if err := batch.Append(row(now, &results[i])...); err != nil {
			return fmt.Errorf("failed to append flow to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.logger.Debug("Wrote flows to ClickHouse", zap.Int("flows", len(results)))
	return nil
}

// row lays out a result in flow_features column order.
func row(ts time.Time, r *model.FlowResult) []any {
	label, confidence, malicious := "", 0.0, false
	if r.Prediction != nil {
		label, confidence, malicious = r.Prediction.Label, r.Prediction.Confidence, r.Prediction.IsMalicious()
	}
	return []any{
		ts,
		r.FlowID,
		r.FiveTuple.SrcIP.String(),
		r.FiveTuple.DstIP.String(),
		r.FiveTuple.SrcPort,
		r.FiveTuple.DstPort,
		r.FiveTuple.Protocol,
		r.StartTime,
		r.EndTime,
		label,
		confidence,
		malicious,
		alerting.Severity(r.Prediction),
		r.Features,
	}
}

// Close implements model.Writer.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
