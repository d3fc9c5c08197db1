package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"FlowGuard/internal/config"
	"FlowGuard/internal/engine/manager"
	"FlowGuard/internal/probe"
	pcapreader "FlowGuard/pkg/pcap"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"
)

// readTimeout bounds each blocking read so a live capture notices cancellation.
const readTimeout = 500 * time.Millisecond

// capture feeds packets from the configured source into mgr until the source is exhausted,
// the packet count is reached or ctx is done.
func capture(ctx context.Context, cfg *config.Config, mgr *manager.Manager, logger *zap.Logger) error {
	switch cfg.Capture.Source {
	case "pcap":
		return replay(ctx, cfg.Capture, mgr, logger)
	case "nats":
		return subscribe(ctx, cfg, mgr, logger)
	default:
		return captureLive(ctx, cfg.Capture, mgr, logger)
	}
}

func captureLive(ctx context.Context, cfg config.CaptureConfig, mgr *manager.Manager, logger *zap.Logger) error {
	iface := cfg.Interface
	if iface == "" {
		devs, err := pcap.FindAllDevs()
		if err != nil || len(devs) == 0 {
			return fmt.Errorf("no capture interface given and none found: %v", err)
		}
		iface = devs[0].Name
	}

	handle, err := pcap.OpenLive(iface, int32(cfg.SnapshotLen), cfg.Promiscuous, readTimeout)
	if err != nil {
		return fmt.Errorf("error opening device %s: %w", iface, err)
	}
	defer handle.Close()
	if cfg.Filter != "" {
		if err := handle.SetBPFFilter(cfg.Filter); err != nil {
			return fmt.Errorf("invalid BPF filter %q: %w", cfg.Filter, err)
		}
	}
	logger.Info("Live capture started", zap.String("interface", iface), zap.String("filter", cfg.Filter))

	src := gopacket.NewPacketSource(handle, handle.LinkType())
	src.Lazy = true
	n := 0
	for cfg.Count == 0 || n < cfg.Count {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := src.NextPacket()
		if errors.Is(err, pcap.NextErrorTimeoutExpired) {
			continue
		}
		if err != nil {
			return fmt.Errorf("capture on %s failed: %w", iface, err)
		}
		mgr.IngestPacket(p)
		n++
	}
	logger.Info("Packet count reached", zap.Int("packets", n))
	return nil
}

func replay(ctx context.Context, cfg config.CaptureConfig, mgr *manager.Manager, logger *zap.Logger) error {
	r, err := pcapreader.NewReader(cfg.PcapFile, cfg.Filter)
	if err != nil {
		return err
	}
	defer r.Close()
	logger.Info("Replaying capture file", zap.String("file", cfg.PcapFile), zap.Stringer("link_type", r.LinkType()))

	n, err := r.ReadPackets(ctx, cfg.Count, mgr.IngestPacket)
	logger.Info("Capture file replayed", zap.Int("packets", n))
	return err
}

func subscribe(ctx context.Context, cfg *config.Config, mgr *manager.Manager, logger *zap.Logger) error {
	sub, err := probe.NewSubscriber(cfg.Probe, logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	done := make(chan struct{})
	var received atomic.Int64
	var closed atomic.Bool
	limit := int64(cfg.Capture.Count)
	err = sub.Start(func(f probe.Frame) {
		if limit > 0 && received.Load() >= limit {
			return
		}
		mgr.IngestFrame(f.Data, f.LinkType, f.Info.Timestamp)
		if received.Add(1) == limit && closed.CompareAndSwap(false, true) {
			close(done)
		}
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		logger.Info("Packet count reached", zap.Int64("packets", received.Load()))
		return nil
	}
}
