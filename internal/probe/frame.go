// Package probe moves raw captured frames between a capture host and the detection engine over
// NATS.
package probe

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/nats-io/nats.go"
)

// Message headers carrying the capture metadata of a frame.
const (
	HeaderTimestamp = "Fg-Ts"
	HeaderLinkType  = "Fg-Link"
	HeaderLength    = "Fg-Len"
)

// ErrMalformedFrame is returned for messages whose capture headers are missing or invalid.
var ErrMalformedFrame = errors.New("malformed frame message")

// Frame is one captured link-layer frame plus its capture metadata.
type Frame struct {
	Data     []byte
	Info     gopacket.CaptureInfo
	LinkType layers.LinkType
}

// FrameFromPacket builds a frame from a decoded packet.
func FrameFromPacket(p gopacket.Packet, linkType layers.LinkType) Frame {
	return Frame{Data: p.Data(), Info: p.Metadata().CaptureInfo, LinkType: linkType}
}

func frameMsg(subject string, f Frame) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = f.Data
	msg.Header.Set(HeaderTimestamp, strconv.FormatInt(f.Info.Timestamp.UnixNano(), 10))
	msg.Header.Set(HeaderLinkType, strconv.Itoa(int(f.LinkType)))
	length := f.Info.Length
	if length == 0 {
		length = len(f.Data)
	}
	msg.Header.Set(HeaderLength, strconv.Itoa(length))
	return msg
}

func decodeFrame(msg *nats.Msg) (Frame, error) {
	ns, err := strconv.ParseInt(msg.Header.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedFrame, err)
	}
	link, err := strconv.Atoi(msg.Header.Get(HeaderLinkType))
	if err != nil || link < 0 || link > 0xffff {
		return Frame{}, fmt.Errorf("%w: link type %q", ErrMalformedFrame, msg.Header.Get(HeaderLinkType))
	}
	length := len(msg.Data)
	if v := msg.Header.Get(HeaderLength); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= length {
			length = n
		}
	}
	return Frame{
		Data: msg.Data,
		Info: gopacket.CaptureInfo{
			Timestamp:     time.Unix(0, ns),
			CaptureLength: len(msg.Data),
			Length:        length,
		},
		LinkType: layers.LinkType(link),
	}, nil
}
