package probe

import (
	"errors"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/nats-io/nats.go"
)

func TestFrameMsgRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	in := Frame{
		Data:     []byte{1, 2, 3, 4},
		Info:     gopacket.CaptureInfo{Timestamp: ts, CaptureLength: 4, Length: 60},
		LinkType: layers.LinkTypeEthernet,
	}

	msg := frameMsg("flowguard.packets.raw", in)
	out, err := decodeFrame(msg)
	if err != nil {
		t.Fatalf("decodeFrame() error = %v", err)
	}
	if !out.Info.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", out.Info.Timestamp, ts)
	}
	if out.LinkType != layers.LinkTypeEthernet {
		t.Errorf("LinkType = %v", out.LinkType)
	}
	if out.Info.Length != 60 || out.Info.CaptureLength != 4 {
		t.Errorf("lengths = %d/%d, want 60/4", out.Info.Length, out.Info.CaptureLength)
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	msg := nats.NewMsg("s")
	msg.Data = []byte{1}
	if _, err := decodeFrame(msg); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("missing headers: err = %v", err)
	}

	msg.Header.Set(HeaderTimestamp, "1")
	msg.Header.Set(HeaderLinkType, "70000")
	if _, err := decodeFrame(msg); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("bad link type: err = %v", err)
	}

	msg.Header.Set(HeaderLinkType, "1")
	msg.Header.Set(HeaderLength, "junk")
	f, err := decodeFrame(msg)
	if err != nil {
		t.Fatalf("unexpected error = %v", err)
	}
	if f.Info.Length != 1 {
		t.Errorf("Length = %d, want the payload length", f.Info.Length)
	}
}
