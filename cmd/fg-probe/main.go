package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FlowGuard/internal/config"
	"FlowGuard/internal/probe"
	"FlowGuard/internal/probe/persistent"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"
)

const readTimeout = 500 * time.Millisecond

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	iface := flag.String("i", "", "Interface to capture packets from")
	record := flag.String("record", "", "Also keep a pcap copy of published frames in this directory")
	flag.Parse()

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	if *iface != "" {
		cfg.Capture.Interface = *iface
	}
	if *record != "" {
		cfg.Probe.RecordDir = *record
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Capture.Interface == "" {
		logger.Fatal("An interface is required: set capture.interface or pass -i")
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatal("Probe failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	pub, err := probe.NewPublisher(cfg.Probe, logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	handle, err := pcap.OpenLive(cfg.Capture.Interface, int32(cfg.Capture.SnapshotLen), cfg.Capture.Promiscuous, readTimeout)
	if err != nil {
		return err
	}
	defer handle.Close()
	if cfg.Capture.Filter != "" {
		if err := handle.SetBPFFilter(cfg.Capture.Filter); err != nil {
			return err
		}
	}
	linkType := handle.LinkType()

	var rec *persistent.Recorder
	if cfg.Probe.RecordDir != "" {
		rec, err = persistent.NewRecorder(cfg.Probe.RecordDir, cfg.Probe.RecordBuffer, uint32(cfg.Capture.SnapshotLen), linkType, logger)
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Capture started, publishing frames",
		zap.String("interface", cfg.Capture.Interface), zap.String("subject", cfg.Probe.Subject))

	src := gopacket.NewPacketSource(handle, linkType)
	var published uint64
	for ctx.Err() == nil {
		p, err := src.NextPacket()
		if errors.Is(err, pcap.NextErrorTimeoutExpired) {
			continue
		}
		if err != nil {
			return err
		}
		f := probe.FrameFromPacket(p, linkType)
		if err := pub.Publish(f); err != nil {
			logger.Warn("Failed to publish frame", zap.Error(err))
			continue
		}
		if rec != nil {
			rec.Enqueue(f)
		}
		published++
		if published%10000 == 0 {
			logger.Info("Frames published", zap.Uint64("count", published))
		}
	}

	logger.Info("Shutdown signal received, cleaning up", zap.Uint64("published", published))
	return nil
}
