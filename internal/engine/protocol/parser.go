package protocol

import (
	"errors"
	"fmt"
	"time"

	"FlowGuard/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	// ErrNoNetworkLayer is returned for well-formed packets that carry neither an IPv4 nor an
	// IPv6 header, such as ARP or LLDP.
	ErrNoNetworkLayer = errors.New("packet has no network layer")
	// ErrMalformedPacket is returned when decoding failed before an IP header was found.
	ErrMalformedPacket = errors.New("malformed packet")
)

const (
	ipv6HeaderLength = 40
	udpHeaderLength  = 8
)

// ParseFrame decodes a raw frame of the given link type and extracts its header view.
// A zero ts leaves the timestamp to ParsePacket, which falls back to time.Now.
func ParseFrame(data []byte, linkType layers.LinkType, ts time.Time) (*model.PacketInfo, error) {
	packet := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	if !ts.IsZero() {
		md := packet.Metadata()
		md.Timestamp = ts
		md.CaptureLength = len(data)
		md.Length = len(data)
	}
	return ParsePacket(packet)
}

// ParsePacket extracts the flow-relevant fields of an already decoded packet.
func ParsePacket(packet gopacket.Packet) (*model.PacketInfo, error) {
	if packet == nil {
		return nil, fmt.Errorf("nil packet: %w", ErrMalformedPacket)
	}

	info := &model.PacketInfo{
		Timestamp: time.Now(),
		Length:    len(packet.Data()),
	}
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		info.Timestamp = meta.Timestamp
	}

	var fiveTuple model.FiveTuple
	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		fiveTuple.SrcIP = ip.SrcIP
		fiveTuple.DstIP = ip.DstIP
		fiveTuple.Protocol = uint8(ip.Protocol)
		info.HeaderLength = int(ip.IHL) * 4
	case *layers.IPv6:
		fiveTuple.SrcIP = ip.SrcIP
		fiveTuple.DstIP = ip.DstIP
		fiveTuple.Protocol = uint8(ip.NextHeader)
		info.HeaderLength = ipv6HeaderLength
	default:
		if el := packet.ErrorLayer(); el != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, el.Error())
		}
		return nil, ErrNoNetworkLayer
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		fiveTuple.SrcPort = uint16(tcp.SrcPort)
		fiveTuple.DstPort = uint16(tcp.DstPort)
		info.HeaderLength += int(tcp.DataOffset) * 4
		info.Transport = model.TransportTCP
		info.Window = tcp.Window
		info.Flags = model.TCPFlags{
			FIN: tcp.FIN,
			SYN: tcp.SYN,
			RST: tcp.RST,
			PSH: tcp.PSH,
			ACK: tcp.ACK,
			URG: tcp.URG,
			ECE: tcp.ECE,
			CWR: tcp.CWR,
		}
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		fiveTuple.SrcPort = uint16(udp.SrcPort)
		fiveTuple.DstPort = uint16(udp.DstPort)
		info.HeaderLength += udpHeaderLength
		info.Transport = model.TransportUDP
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil || packet.Layer(layers.LayerTypeICMPv6) != nil {
		info.Transport = model.TransportICMP
	}

	info.FiveTuple = fiveTuple
	return info, nil
}
