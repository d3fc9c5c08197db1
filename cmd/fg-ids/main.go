package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"FlowGuard/internal/ai"
	"FlowGuard/internal/alerter"
	"FlowGuard/internal/api"
	"FlowGuard/internal/config"
	"FlowGuard/internal/engine/manager"
	"FlowGuard/internal/engine/sketch"
	"FlowGuard/internal/factory"
	"FlowGuard/internal/geo"
	"FlowGuard/internal/model"
	"FlowGuard/internal/notification" // Also registers the NATS alert sink
	"FlowGuard/internal/query"

	_ "FlowGuard/internal/backend"    // Registers the HTTP backend sink
	_ "FlowGuard/internal/classifier" // Registers the onnx and grpc classifiers
	_ "FlowGuard/internal/output"     // Registers the JSON, CSV and ClickHouse writers

	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to the YAML configuration file")
	list := flag.Bool("list", false, "List available network interfaces and exit")
	iface := flag.String("i", "", "Network interface to capture from")
	pcapFile := flag.String("r", "", "Replay a pcap/pcapng file instead of capturing live")
	fromNATS := flag.Bool("nats", false, "Consume raw frames published by fg-probe")
	filter := flag.String("filter", "", "BPF filter expression")
	count := flag.Int("c", 0, "Number of packets to capture (0 = unlimited)")
	duration := flag.Duration("d", 0, "Capture duration (0 = unlimited)")
	flowTimeout := flag.Duration("t", 0, "Flow idle timeout")
	saveInterval := flag.Duration("s", 0, "Flow check interval")
	confidence := flag.Float64("confidence", -1, "Alert confidence threshold (0-1)")
	noBackend := flag.Bool("no-backend", false, "Disable the HTTP backend (offline mode)")
	backendURL := flag.String("backend-url", "", "Backend API URL")
	modelPath := flag.String("model", "", "ONNX model path")
	labelsPath := flag.String("labels", "", "Class labels file, one label per line")
	geoDB := flag.String("geoip-db", "", "GeoIP2 city database path")
	jsonOut := flag.String("json", "", "JSON alert output file")
	csvOut := flag.String("csv", "", "Alert summary CSV output file")
	featuresOut := flag.String("features-output", "", "Feature CSV output file")
	flag.Parse()

	if *list {
		if err := listInterfaces(os.Stdout); err != nil {
			log.Fatalf("Failed to list interfaces: %v", err)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the file only when given explicitly.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			cfg.Capture.Interface = *iface
		case "r":
			cfg.Capture.Source = "pcap"
			cfg.Capture.PcapFile = *pcapFile
		case "nats":
			if *fromNATS {
				cfg.Capture.Source = "nats"
			}
		case "filter":
			cfg.Capture.Filter = *filter
		case "c":
			cfg.Capture.Count = *count
		case "d":
			cfg.Capture.Duration = config.Duration(*duration)
		case "t":
			cfg.Engine.FlowTimeout = config.Duration(*flowTimeout)
		case "s":
			cfg.Engine.SaveInterval = config.Duration(*saveInterval)
		case "confidence":
			cfg.Engine.ConfidenceThreshold = *confidence
		case "no-backend":
			cfg.Backend.Enabled = !*noBackend
		case "backend-url":
			cfg.Backend.URL = *backendURL
		case "model":
			cfg.Classifier.Type = "onnx"
			cfg.Classifier.ONNX.ModelPath = *modelPath
		case "labels":
			cfg.Classifier.ONNX.LabelsPath = *labelsPath
		case "geoip-db":
			cfg.GeoIP.DatabasePath = *geoDB
		case "json":
			cfg.Output.JSONPath = *jsonOut
		case "csv":
			cfg.Output.CSVPath = *csvOut
		case "features-output":
			cfg.Output.FeaturesPath = *featuresOut
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("FlowGuard failed", zap.Error(err))
	}
}

// loadConfig reads path, falling back to the defaults when the default file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func listInterfaces(w io.Writer) error {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return err
	}
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(w, "\n%s\n  AVAILABLE NETWORK INTERFACES\n%s\n\n", rule, rule)
	for i, d := range devs {
		var addrs []string
		for _, a := range d.Addresses {
			addrs = append(addrs, a.IP.String())
		}
		fmt.Fprintf(w, "  %d. %s", i+1, d.Name)
		if len(addrs) > 0 {
			fmt.Fprintf(w, " (%s)", strings.Join(addrs, ", "))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%s\n\n", rule)
	return nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting FlowGuard",
		zap.String("source", cfg.Capture.Source),
		zap.String("classifier", cfg.Classifier.Type),
		zap.Float64("confidence_threshold", cfg.Engine.ConfidenceThreshold))

	// Startup failures below are fatal before capture begins.
	clf, err := factory.NewClassifier(cfg, logger)
	if err != nil {
		return err
	}
	defer clf.Close()

	locator := geo.OpenOrEmpty(cfg.GeoIP.DatabasePath, logger)
	defer locator.Close()

	writers, err := factory.CreateWriters(cfg, logger)
	if err != nil {
		return err
	}
	sinks := factory.CreateSinks(cfg, logger)

	var logSink model.LogSink
	if cfg.Backend.SendLogs {
		for _, s := range sinks {
			if ls, ok := s.(model.LogSink); ok {
				logSink = ls
				break
			}
		}
	}

	var tracker *sketch.Tracker
	if sc := cfg.Engine.Sketch; sc.Enabled {
		tracker = sketch.NewTracker(sketch.Config{
			Width:           sc.Width,
			Depth:           sc.Depth,
			TalkerThreshold: sc.TalkerThreshold,
			SpreadThreshold: sc.SpreadThreshold,
			TopN:            sc.TopN,
		})
	}

	mgr, err := manager.NewManager(manager.OptionsFromConfig(cfg), manager.Deps{
		Classifier: clf,
		Geo:        locator,
		Sinks:      sinks,
		Writers:    writers,
		LogSink:    logSink,
		Console:    os.Stdout,
		Sketch:     tracker,
	}, logger)
	if err != nil {
		return err
	}

	var alr *alerter.Alerter
	if cfg.Alerter.Enabled {
		alr = newAlerter(cfg, mgr, logger)
	}

	var apiServer *api.Server
	var querier query.Querier
	if cfg.API.ListenAddr != "" {
		if cfg.Output.ClickHouse.Enabled {
			if querier, err = query.NewClickHouseQuerier(cfg.Output.ClickHouse); err != nil {
				logger.Warn("Flow store queries disabled", zap.Error(err))
				querier = nil
			}
		}
		if apiServer, err = api.NewServer(cfg.API.ListenAddr, mgr.Snapshot, querier, tracker, logger); err != nil {
			return err
		}
	}

	// Signal reception only cancels the capture context; the shutdown sequence runs below.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := cfg.Capture.Duration.Std(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	mgr.Start()
	if alr != nil {
		alr.Start()
	}
	if apiServer != nil {
		apiServer.Start()
	}

	logger.Info("IDS ready, starting capture")
	captureErr := capture(ctx, cfg, mgr, logger)
	switch {
	case captureErr == nil:
		logger.Info("Capture finished")
	case errors.Is(captureErr, context.Canceled):
		logger.Info("Shutdown signal received")
		captureErr = nil
	case errors.Is(captureErr, context.DeadlineExceeded):
		logger.Info("Duration limit reached, stopping")
		captureErr = nil
	}

	mgr.Stop()
	if alr != nil {
		alr.Stop()
	}
	if apiServer != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(sctx); err != nil {
			logger.Warn("API server forced to shut down", zap.Error(err))
		}
		cancel()
	}
	if querier != nil {
		querier.Close()
	}
	for _, w := range writers {
		if err := w.Close(); err != nil {
			logger.Error("Failed to close writer", zap.Error(err))
		}
	}
	for _, s := range sinks {
		if c, ok := s.(io.Closer); ok {
			c.Close()
		}
	}
	logger.Info("Shutdown complete")
	return captureErr
}

func newAlerter(cfg *config.Config, mgr *manager.Manager, logger *zap.Logger) *alerter.Alerter {
	if cfg.SMTP.Host == "" {
		logger.Warn("Alerter is enabled but no SMTP server is configured; alerter will not run")
		return nil
	}
	var analyzer model.Analyzer
	if cfg.Alerter.AIAnalysis.Enabled {
		a, err := ai.NewDigestAnalyzer(cfg.AI)
		if err != nil {
			logger.Warn("AI analysis disabled", zap.Error(err))
		} else {
			analyzer = a
		}
	}
	alr, err := alerter.NewAlerter(cfg.Alerter, mgr.Snapshot, notification.NewEmailNotifier(cfg.SMTP), analyzer, logger)
	if err != nil {
		logger.Warn("Alerter disabled", zap.Error(err))
		return nil
	}
	return alr
}
