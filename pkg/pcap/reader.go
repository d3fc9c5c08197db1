// Package pcap replays capture files.
package pcap

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
)

var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Reader reads packets from a pcap or pcapng file.
type Reader struct {
	source   gopacket.PacketDataSource
	linkType layers.LinkType
	closer   func()
}

// NewReader opens filePath. Without a filter the file is read in pure Go (pcap and pcapng);
// a BPF filter requires libpcap.
func NewReader(filePath, filter string) (*Reader, error) {
	if filter != "" {
		handle, err := pcap.OpenOffline(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
		}
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("invalid BPF filter %q: %w", filter, err)
		}
		return &Reader{source: handle, linkType: handle.LinkType(), closer: handle.Close}, nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	r, err := newFileReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	r.closer = func() { f.Close() }
	return r, nil
}

func newFileReader(f io.Reader) (*Reader, error) {
	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(magic, ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, err
		}
		return &Reader{source: ng, linkType: ng.LinkType()}, nil
	}
	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, err
	}
	return &Reader{source: pr, linkType: pr.LinkType()}, nil
}

// LinkType returns the link type of the file.
func (r *Reader) LinkType() layers.LinkType {
	return r.linkType
}

// Close closes the underlying file.
func (r *Reader) Close() {
	if r.closer != nil {
		r.closer()
	}
}

// ReadPackets decodes packets in file order and hands each to fn until the file ends, ctx is
// canceled or limit packets were read (limit 0 reads everything). It returns the number of
// packets handed to fn.
func (r *Reader) ReadPackets(ctx context.Context, limit int, fn func(gopacket.Packet)) (int, error) {
	src := gopacket.NewPacketSource(r.source, r.linkType)
	src.Lazy = true
	src.NoCopy = true

	n := 0
	for {
		if limit > 0 && n >= limit {
			return n, nil
		}
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		default:
		}
		p, err := src.NextPacket()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			// Truncated trailing records are common in captures cut short.
			if err == io.ErrUnexpectedEOF {
				return n, nil
			}
			return n, fmt.Errorf("failed to read packet %d: %w", n+1, err)
		}
		fn(p)
		n++
	}
}
