// pcapgen writes a synthetic capture of complete bidirectional conversations for replaying
// through fg-ids: TCP sessions closed by FIN or RST, UDP request/response pairs and an optional
// SYN port scan.
package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type frame struct {
	ts   time.Time
	data []byte
}

type endpoint struct {
	ip   net.IP
	port uint16
}

type generator struct {
	rng    *rand.Rand
	frames []frame
}

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	tcpFlows := flag.Int("tcp", 200, "Number of TCP sessions")
	udpFlows := flag.Int("udp", 100, "Number of UDP request/response pairs")
	scanPorts := flag.Int("scan", 0, "Number of ports probed by a SYN scan (0 = no scan)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	g := &generator{rng: rand.New(rand.NewSource(*seed))}
	start := time.Now().Add(-time.Hour).Truncate(time.Second)

	for i := 0; i < *tcpFlows; i++ {
		g.tcpSession(start.Add(time.Duration(g.rng.Intn(600)) * time.Second))
	}
	for i := 0; i < *udpFlows; i++ {
		g.udpExchange(start.Add(time.Duration(g.rng.Intn(600)) * time.Second))
	}
	if *scanPorts > 0 {
		g.synScan(start.Add(300*time.Second), *scanPorts)
	}

	sort.SliceStable(g.frames, func(i, j int) bool { return g.frames[i].ts.Before(g.frames[j].ts) })

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}
	for _, fr := range g.frames {
		ci := gopacket.CaptureInfo{Timestamp: fr.ts, CaptureLength: len(fr.data), Length: len(fr.data)}
		if err := w.WritePacket(ci, fr.data); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}
	log.Printf("Generated %d packets into %s (seed %d)", len(g.frames), *outputFile, *seed)
}

func (g *generator) client() endpoint {
	return endpoint{
		ip:   net.IP{192, 168, byte(g.rng.Intn(4)), byte(g.rng.Intn(250) + 2)},
		port: uint16(g.rng.Intn(65535-1024) + 1024),
	}
}

func (g *generator) server(ports ...uint16) endpoint {
	return endpoint{
		ip:   net.IP{10, 0, byte(g.rng.Intn(4)), byte(g.rng.Intn(250) + 2)},
		port: ports[g.rng.Intn(len(ports))],
	}
}

func (g *generator) gap(maxMs int) time.Duration {
	return time.Duration(g.rng.Intn(maxMs)+1) * time.Millisecond
}

// tcpSession emits a handshake, a few request/response rounds and a FIN (or, sometimes, RST)
// teardown.
func (g *generator) tcpSession(ts time.Time) {
	c, s := g.client(), g.server(80, 443, 22, 8080)
	cseq, sseq := g.rng.Uint32(), g.rng.Uint32()

	g.tcp(ts, c, s, &layers.TCP{SYN: true, Seq: cseq, Window: 64240}, nil)
	ts = ts.Add(g.gap(30))
	g.tcp(ts, s, c, &layers.TCP{SYN: true, ACK: true, Seq: sseq, Ack: cseq + 1, Window: 65160}, nil)
	ts = ts.Add(g.gap(30))
	cseq++
	sseq++
	g.tcp(ts, c, s, &layers.TCP{ACK: true, Seq: cseq, Ack: sseq, Window: 502}, nil)

	for r := g.rng.Intn(6) + 1; r > 0; r-- {
		req := g.payload(40, 600)
		ts = ts.Add(g.gap(200))
		g.tcp(ts, c, s, &layers.TCP{PSH: true, ACK: true, Seq: cseq, Ack: sseq, Window: 502}, req)
		cseq += uint32(len(req))

		resp := g.payload(100, 1400)
		ts = ts.Add(g.gap(50))
		g.tcp(ts, s, c, &layers.TCP{PSH: true, ACK: true, Seq: sseq, Ack: cseq, Window: 509}, resp)
		sseq += uint32(len(resp))
	}

	ts = ts.Add(g.gap(100))
	if g.rng.Intn(10) == 0 {
		g.tcp(ts, s, c, &layers.TCP{RST: true, Seq: sseq}, nil)
		return
	}
	g.tcp(ts, c, s, &layers.TCP{FIN: true, ACK: true, Seq: cseq, Ack: sseq, Window: 502}, nil)
	ts = ts.Add(g.gap(20))
	g.tcp(ts, s, c, &layers.TCP{FIN: true, ACK: true, Seq: sseq, Ack: cseq + 1, Window: 509}, nil)
	ts = ts.Add(g.gap(20))
	g.tcp(ts, c, s, &layers.TCP{ACK: true, Seq: cseq + 1, Ack: sseq + 1, Window: 502}, nil)
}

func (g *generator) udpExchange(ts time.Time) {
	c, s := g.client(), g.server(53, 123)
	g.udp(ts, c, s, g.payload(30, 80))
	g.udp(ts.Add(g.gap(40)), s, c, g.payload(60, 500))
}

// synScan probes consecutive ports of one host; closed ports answer with RST.
func (g *generator) synScan(ts time.Time, ports int) {
	attacker := endpoint{ip: net.IP{203, 0, 113, 66}}
	target := net.IP{10, 0, 0, 10}
	for p := 1; p <= ports; p++ {
		src := endpoint{ip: attacker.ip, port: uint16(40000 + p%20000)}
		dst := endpoint{ip: target, port: uint16(p)}
		g.tcp(ts, src, dst, &layers.TCP{SYN: true, Seq: g.rng.Uint32(), Window: 1024}, nil)
		g.tcp(ts.Add(time.Millisecond), dst, src, &layers.TCP{RST: true, ACK: true}, nil)
		ts = ts.Add(2 * time.Millisecond)
	}
}

func (g *generator) payload(lo, hi int) []byte {
	b := make([]byte, g.rng.Intn(hi-lo)+lo)
	g.rng.Read(b)
	return b
}

func (g *generator) tcp(ts time.Time, src, dst endpoint, tcp *layers.TCP, payload []byte) {
	tcp.SrcPort = layers.TCPPort(src.port)
	tcp.DstPort = layers.TCPPort(dst.port)
	ip := ipv4(src, dst, layers.IPProtocolTCP)
	tcp.SetNetworkLayerForChecksum(ip)
	g.emit(ts, ip, tcp, payload)
}

func (g *generator) udp(ts time.Time, src, dst endpoint, payload []byte) {
	udp := &layers.UDP{SrcPort: layers.UDPPort(src.port), DstPort: layers.UDPPort(dst.port)}
	ip := ipv4(src, dst, layers.IPProtocolUDP)
	udp.SetNetworkLayerForChecksum(ip)
	g.emit(ts, ip, udp, payload)
}

func ipv4(src, dst endpoint, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{Version: 4, TTL: 64, Protocol: proto, SrcIP: src.ip, DstIP: dst.ip}
}

func (g *generator) emit(ts time.Time, ip *layers.IPv4, transport gopacket.SerializableLayer, payload []byte) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, transport, gopacket.Payload(payload)); err != nil {
		log.Fatalf("Failed to serialize layers: %v", err)
	}
	g.frames = append(g.frames, frame{ts: ts, data: append([]byte(nil), buf.Bytes()...)})
}
