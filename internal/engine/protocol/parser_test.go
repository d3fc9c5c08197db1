package protocol

import (
	"errors"
	"net"
	"testing"
	"time"

	"FlowGuard/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("Failed to serialize layers: %v", err)
	}
	return buf.Bytes()
}

func ethernet(ethType layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: ethType,
	}
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
}

func TestParseFrame_TCP(t *testing.T) {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: 40000,
		DstPort: 80,
		SYN:     true,
		ECE:     true,
		CWR:     true,
		Window:  29200,
		Options: []layers.TCPOption{
			{OptionType: layers.TCPOptionKindMSS, OptionLength: 4, OptionData: []byte{0x05, 0xb4}},
		},
	}
	tcp.SetNetworkLayerForChecksum(ip)
	data := serialize(t, ethernet(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(make([]byte, 10)))

	ts := time.Unix(1700000000, 0)
	info, err := ParseFrame(data, layers.LinkTypeEthernet, ts)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}

	if !info.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", info.Timestamp, ts)
	}
	if info.Length != len(data) {
		t.Errorf("Length = %d, want %d", info.Length, len(data))
	}
	// 20 byte IPv4 header + 24 byte TCP header (20 + 4 byte MSS option).
	if info.HeaderLength != 44 {
		t.Errorf("HeaderLength = %d, want 44", info.HeaderLength)
	}
	if info.Transport != model.TransportTCP {
		t.Errorf("Transport = %v, want TCP", info.Transport)
	}
	if info.FiveTuple.SrcPort != 40000 || info.FiveTuple.DstPort != 80 || info.FiveTuple.Protocol != 6 {
		t.Errorf("unexpected five tuple: %+v", info.FiveTuple)
	}
	if !info.FiveTuple.SrcIP.Equal(net.IP{10, 0, 0, 1}) || !info.FiveTuple.DstIP.Equal(net.IP{10, 0, 0, 2}) {
		t.Errorf("unexpected addresses: %v -> %v", info.FiveTuple.SrcIP, info.FiveTuple.DstIP)
	}
	want := model.TCPFlags{SYN: true, ECE: true, CWR: true}
	if info.Flags != want {
		t.Errorf("Flags = %+v, want %+v", info.Flags, want)
	}
	if info.Window != 29200 {
		t.Errorf("Window = %d, want 29200", info.Window)
	}
}

func TestParseFrame_HeaderLengths(t *testing.T) {
	udpIP := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	udp.SetNetworkLayerForChecksum(udpIP)

	icmpIP := ipv4(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}

	v6 := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	udp6 := &layers.UDP{SrcPort: 1000, DstPort: 2000}
	udp6.SetNetworkLayerForChecksum(v6)

	tests := []struct {
		name       string
		data       []byte
		wantHeader int
		wantProto  model.Transport
	}{
		{
			name:       "udp",
			data:       serialize(t, ethernet(layers.EthernetTypeIPv4), udpIP, udp, gopacket.Payload([]byte("query"))),
			wantHeader: 28,
			wantProto:  model.TransportUDP,
		},
		{
			name:       "icmp",
			data:       serialize(t, ethernet(layers.EthernetTypeIPv4), icmpIP, icmp, gopacket.Payload([]byte("ping"))),
			wantHeader: 20,
			wantProto:  model.TransportICMP,
		},
		{
			name:       "udp over ipv6",
			data:       serialize(t, ethernet(layers.EthernetTypeIPv6), v6, udp6, gopacket.Payload([]byte("x"))),
			wantHeader: 48,
			wantProto:  model.TransportUDP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseFrame(tt.data, layers.LinkTypeEthernet, time.Now())
			if err != nil {
				t.Fatalf("ParseFrame() error = %v", err)
			}
			if info.HeaderLength != tt.wantHeader {
				t.Errorf("HeaderLength = %d, want %d", info.HeaderLength, tt.wantHeader)
			}
			if info.Transport != tt.wantProto {
				t.Errorf("Transport = %v, want %v", info.Transport, tt.wantProto)
			}
		})
	}
}

func TestParseFrame_NoNetworkLayer(t *testing.T) {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 0, 2},
	}
	data := serialize(t, ethernet(layers.EthernetTypeARP), arp)

	_, err := ParseFrame(data, layers.LinkTypeEthernet, time.Now())
	if !errors.Is(err, ErrNoNetworkLayer) {
		t.Fatalf("ParseFrame() error = %v, want ErrNoNetworkLayer", err)
	}
}

func TestParseFrame_Malformed(t *testing.T) {
	_, err := ParseFrame([]byte{0xde, 0xad}, layers.LinkTypeEthernet, time.Now())
	if !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("ParseFrame() error = %v, want ErrMalformedPacket", err)
	}

	if _, err := ParsePacket(nil); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("ParsePacket(nil) error = %v, want ErrMalformedPacket", err)
	}
}
