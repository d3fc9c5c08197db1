package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from Go duration strings such as "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// CaptureConfig describes where packets come from.
type CaptureConfig struct {
	// Source is one of "live", "pcap" or "nats".
	Source      string   `yaml:"source"`
	Interface   string   `yaml:"interface"`
	Filter      string   `yaml:"filter"`
	PcapFile    string   `yaml:"pcap_file"`
	SnapshotLen int32    `yaml:"snapshot_len"`
	Promiscuous bool     `yaml:"promiscuous"`
	Count       int      `yaml:"count"`
	Duration    Duration `yaml:"duration"`
}

// EngineConfig holds the flow tracking and flush parameters.
type EngineConfig struct {
	FlowTimeout         Duration `yaml:"flow_timeout"`
	SaveInterval        Duration `yaml:"save_interval"`
	ActivityTimeout     Duration `yaml:"activity_timeout"`
	StatsInterval       Duration `yaml:"stats_interval"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	NumShards           uint32   `yaml:"num_shards"`
	// PacketClock makes the flush scheduler use the newest packet timestamp as "now".
	// It is forced on for pcap replay.
	PacketClock bool `yaml:"packet_clock"`

	Sketch SketchConfig `yaml:"sketch"`
}

// SketchConfig sizes the per-source traffic sketches, reported once per stats interval.
type SketchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Width           uint32 `yaml:"width"`
	Depth           uint32 `yaml:"depth"`
	TalkerThreshold uint32 `yaml:"talker_threshold"`
	SpreadThreshold uint32 `yaml:"spread_threshold"`
	TopN            int    `yaml:"top_n"`
}

// ONNXConfig locates the model artifacts for the local ONNX runtime classifier.
type ONNXConfig struct {
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`
	LabelsPath  string `yaml:"labels_path"`
	InputName   string `yaml:"input_name"`
	OutputName  string `yaml:"output_name"`
}

// GRPCClassifierConfig locates a remote classification service.
type GRPCClassifierConfig struct {
	Addr string `yaml:"addr"`
}

// ClassifierConfig selects and configures the classifier implementation.
type ClassifierConfig struct {
	// Type is one of "onnx" or "grpc".
	Type    string               `yaml:"type"`
	Timeout Duration             `yaml:"timeout"`
	ONNX    ONNXConfig           `yaml:"onnx"`
	GRPC    GRPCClassifierConfig `yaml:"grpc"`
}

// GeoIPConfig locates the GeoLite2/GeoIP2 city database.
type GeoIPConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// OutputConfig holds the local persistence targets.
type OutputConfig struct {
	JSONPath     string           `yaml:"json_path"`
	CSVPath      string           `yaml:"csv_path"`
	FeaturesPath string           `yaml:"features_path"`
	ClickHouse   ClickHouseConfig `yaml:"clickhouse"`
}

// BackendConfig configures the HTTP ingestion backend.
type BackendConfig struct {
	Enabled  bool     `yaml:"enabled"`
	URL      string   `yaml:"url"`
	APIKey   string   `yaml:"api_key"`
	Timeout  Duration `yaml:"timeout"`
	SendLogs bool     `yaml:"send_logs"`
}

// ProbeConfig holds the NATS transport settings.
type ProbeConfig struct {
	NATSURL       string `yaml:"nats_url"`
	Subject       string `yaml:"subject"`
	AlertSubject  string `yaml:"alert_subject"`
	PublishAlerts bool   `yaml:"publish_alerts"`
	// RecordDir, when set, makes the probe also keep a local pcap copy of every frame it publishes.
	RecordDir    string `yaml:"record_dir"`
	RecordBuffer int    `yaml:"record_buffer"`
}

// AlerterRule defines a single rule evaluated by the alerter.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AIAnalysisConfig toggles AI enrichment of alert digests.
type AIAnalysisConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AlerterConfig configures the periodic alert digest.
type AlerterConfig struct {
	Enabled       bool             `yaml:"enabled"`
	CheckInterval Duration         `yaml:"check_interval"`
	Rules         []AlerterRule    `yaml:"rules"`
	AIAnalysis    AIAnalysisConfig `yaml:"ai_analysis"`
}

// SMTPConfig holds the e-mail notifier settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// AIConfig holds the OpenAI-compatible API settings.
type AIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// APIConfig configures the HTTP status API.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Capture    CaptureConfig    `yaml:"capture"`
	Engine     EngineConfig     `yaml:"engine"`
	Classifier ClassifierConfig `yaml:"classifier"`
	GeoIP      GeoIPConfig      `yaml:"geoip"`
	Output     OutputConfig     `yaml:"output"`
	Backend    BackendConfig    `yaml:"backend"`
	Probe      ProbeConfig      `yaml:"probe"`
	Alerter    AlerterConfig    `yaml:"alerter"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	AI         AIConfig         `yaml:"ai"`
	API        APIConfig        `yaml:"api"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	apiKey := os.Getenv("IDS_API_KEY")
	if apiKey == "" {
		apiKey = "ids_engine_secret_key_7788"
	}
	return &Config{
		Log: LogConfig{Level: "info"},
		Capture: CaptureConfig{
			Source:      "live",
			SnapshotLen: 1600,
			Promiscuous: true,
		},
		Engine: EngineConfig{
			FlowTimeout:         Duration(120 * time.Second),
			SaveInterval:        Duration(10 * time.Second),
			ActivityTimeout:     Duration(5 * time.Second),
			StatsInterval:       Duration(60 * time.Second),
			ConfidenceThreshold: 0.7,
			NumShards:           256,
			Sketch: SketchConfig{
				Enabled:         true,
				Width:           4096,
				Depth:           3,
				TalkerThreshold: 1000,
				SpreadThreshold: 100,
				TopN:            10,
			},
		},
		Classifier: ClassifierConfig{
			Type:    "onnx",
			Timeout: Duration(2 * time.Second),
			ONNX: ONNXConfig{
				InputName:  "float_input",
				OutputName: "probabilities",
			},
		},
		GeoIP: GeoIPConfig{DatabasePath: "GeoDB/GeoLite2-City.mmdb"},
		Output: OutputConfig{
			JSONPath:     "output/malicious_flows.json",
			CSVPath:      "output/all_flows.csv",
			FeaturesPath: "output/ml_features.csv",
			ClickHouse:   ClickHouseConfig{Host: "localhost", Port: 9000, Database: "default"},
		},
		Backend: BackendConfig{
			Enabled: true,
			URL:     "http://localhost:3000",
			APIKey:  apiKey,
			Timeout: Duration(2 * time.Second),
		},
		Probe: ProbeConfig{
			NATSURL:      "nats://127.0.0.1:4222",
			Subject:      "flowguard.packets.raw",
			AlertSubject: "flowguard.alerts",
		},
		Alerter: AlerterConfig{CheckInterval: Duration(5 * time.Minute)},
		AI:      AIConfig{Model: "gpt-4o-mini"},
	}
}

// LoadConfig reads the configuration from a YAML file on top of the defaults.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the ranges of the settings the engine depends on.
func (c *Config) Validate() error {
	if c.Engine.ConfidenceThreshold < 0 || c.Engine.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be between 0 and 1, got %v", ErrInvalidConfig, c.Engine.ConfidenceThreshold)
	}
	if c.Engine.FlowTimeout <= 0 {
		return fmt.Errorf("%w: flow_timeout must be positive", ErrInvalidConfig)
	}
	if c.Engine.SaveInterval <= 0 {
		return fmt.Errorf("%w: save_interval must be positive", ErrInvalidConfig)
	}
	if c.Engine.ActivityTimeout < 0 {
		return fmt.Errorf("%w: activity_timeout must not be negative", ErrInvalidConfig)
	}
	if c.Capture.Count < 0 {
		return fmt.Errorf("%w: capture count must not be negative", ErrInvalidConfig)
	}
	switch c.Capture.Source {
	case "live", "pcap", "nats":
	default:
		return fmt.Errorf("%w: unknown capture source %q", ErrInvalidConfig, c.Capture.Source)
	}
	switch c.Classifier.Type {
	case "onnx", "grpc":
	default:
		return fmt.Errorf("%w: unknown classifier type %q", ErrInvalidConfig, c.Classifier.Type)
	}
	return nil
}
