// Package persistent keeps a local pcap copy of the frames a probe publishes.
package persistent

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"FlowGuard/internal/probe"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"
)

const defaultBuffer = 10000

// Recorder writes frames to a pcap file from a single goroutine so that file order matches
// enqueue order.
type Recorder struct {
	frames  chan probe.Frame
	file    *os.File
	writer  *pcapgo.Writer
	logger  *zap.Logger
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
	written atomic.Uint64
}

// NewRecorder creates dir if needed, opens a timestamped pcap file in it and starts the writer.
func NewRecorder(dir string, buffer int, snaplen uint32, linkType layers.LinkType, logger *zap.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	path := filepath.Join(dir, time.Now().Format("2006-01-02_15-04-05")+".pcap")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create record file: %w", err)
	}
	w := pcapgo.NewWriter(file)
	if err := w.WriteFileHeader(snaplen, linkType); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}

	r := &Recorder{
		frames: make(chan probe.Frame, buffer),
		file:   file,
		writer: w,
		logger: logger,
	}
	r.wg.Add(1)
	go r.run()
	logger.Info("Recording frames", zap.String("path", path))
	return r, nil
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for f := range r.frames {
		ci := f.Info
		ci.CaptureLength = len(f.Data)
		if ci.Length < ci.CaptureLength {
			ci.Length = ci.CaptureLength
		}
		if err := r.writer.WritePacket(ci, f.Data); err != nil {
			r.logger.Warn("Failed to record frame", zap.Error(err))
			continue
		}
		r.written.Add(1)
	}
}

// Enqueue hands a frame to the writer; the frame is dropped when the buffer is full.
func (r *Recorder) Enqueue(f probe.Frame) {
	select {
	case r.frames <- f:
	default:
		if r.dropped.Add(1)%1000 == 1 {
			r.logger.Warn("Record buffer full, dropping frames", zap.Uint64("dropped", r.dropped.Load()))
		}
	}
}

// Dropped returns the number of frames lost to a full buffer.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close writes any buffered frames and closes the file. Enqueue must not be called afterwards.
func (r *Recorder) Close() error {
	var err error
	r.once.Do(func() {
		close(r.frames)
		r.wg.Wait()
		err = r.file.Close()
		r.logger.Info("Recorder stopped",
			zap.Uint64("written", r.written.Load()),
			zap.Uint64("dropped", r.dropped.Load()))
	})
	return err
}

// Path returns the file being written.
func (r *Recorder) Path() string {
	return r.file.Name()
}
