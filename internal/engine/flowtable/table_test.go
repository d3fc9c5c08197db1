package flowtable

import (
	"net"
	"sync"
	"testing"
	"time"

	"FlowGuard/internal/model"
)

var (
	hostA = net.IP{192, 168, 1, 10}
	hostB = net.IP{10, 0, 0, 5}
	epoch = time.Unix(1700000000, 0)
)

func tcpPacket(src, dst net.IP, sport, dport uint16, at time.Duration, length int, flags model.TCPFlags) *model.PacketInfo {
	return &model.PacketInfo{
		Timestamp: epoch.Add(at),
		FiveTuple: model.FiveTuple{
			SrcIP: src, DstIP: dst, SrcPort: sport, DstPort: dport, Protocol: 6,
		},
		Length:       length,
		HeaderLength: 40,
		Transport:    model.TransportTCP,
		Flags:        flags,
		Window:       uint16(1000 + length),
	}
}

func TestNewKey_Symmetric(t *testing.T) {
	tests := []struct {
		name         string
		a, b         net.IP
		aPort, bPort uint16
		proto        uint8
	}{
		{"ipv4 tcp", hostA, hostB, 51000, 443, 6},
		{"ipv4 same host", hostA, hostA, 80, 8080, 6},
		{"ipv4 udp", net.IP{8, 8, 8, 8}, hostA, 53, 53000, 17},
		{"ipv6", net.ParseIP("2001:db8::1"), net.ParseIP("2001:db8::2"), 1, 2, 17},
		{"icmp", hostA, hostB, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := NewKey(tt.a, tt.b, tt.aPort, tt.bPort, tt.proto)
			rev := NewKey(tt.b, tt.a, tt.bPort, tt.aPort, tt.proto)
			if fwd != rev {
				t.Errorf("key not symmetric: %q != %q", fwd, rev)
			}
		})
	}

	if got := NewKey(hostB, hostA, 443, 51000, 6); got != "10.0.0.5:443-192.168.1.10:51000-6" {
		t.Errorf("NewKey() = %q", got)
	}
	if NewKey(hostA, hostB, 1, 2, 6) == NewKey(hostA, hostB, 1, 2, 17) {
		t.Error("keys for different protocols must differ")
	}
}

func TestUpsert_DirectionConservation(t *testing.T) {
	table := New(16)
	packets := []*model.PacketInfo{
		tcpPacket(hostA, hostB, 51000, 80, 0, 60, model.TCPFlags{SYN: true}),
		tcpPacket(hostB, hostA, 80, 51000, 10*time.Millisecond, 60, model.TCPFlags{SYN: true, ACK: true}),
		tcpPacket(hostA, hostB, 51000, 80, 20*time.Millisecond, 52, model.TCPFlags{ACK: true}),
		tcpPacket(hostA, hostB, 51000, 80, 30*time.Millisecond, 500, model.TCPFlags{ACK: true, PSH: true}),
		tcpPacket(hostB, hostA, 80, 51000, 50*time.Millisecond, 1500, model.TCPFlags{ACK: true, PSH: true, URG: true}),
	}

	created := 0
	for _, p := range packets {
		if table.Upsert(p, 0) {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one record to be created, got %d", created)
	}

	rec, ok := table.Snapshot(NewKey(hostA, hostB, 51000, 80, 6))
	if !ok {
		t.Fatal("record not found")
	}

	if rec.FwdPackets != 3 || rec.BwdPackets != 2 {
		t.Errorf("fwd/bwd packets = %d/%d, want 3/2", rec.FwdPackets, rec.BwdPackets)
	}
	if rec.FwdPackets+rec.BwdPackets != uint64(len(packets)) {
		t.Errorf("direction counts do not add up to %d", len(packets))
	}
	if rec.FwdBytes != 612 || rec.BwdBytes != 1560 {
		t.Errorf("fwd/bwd bytes = %d/%d, want 612/1560", rec.FwdBytes, rec.BwdBytes)
	}
	if len(rec.FlowIAT) != 4 || len(rec.FwdIAT) != 2 || len(rec.BwdIAT) != 1 {
		t.Errorf("IAT sample counts = %d/%d/%d, want 4/2/1", len(rec.FlowIAT), len(rec.FwdIAT), len(rec.BwdIAT))
	}
	if rec.BwdIAT[0] != 0.04 {
		t.Errorf("BwdIAT[0] = %v, want 0.04", rec.BwdIAT[0])
	}
	if rec.SYNCount != 2 || rec.ACKCount != 4 || rec.PSHCount != 2 || rec.FwdPSH != 1 || rec.BwdPSH != 1 {
		t.Errorf("unexpected flag counters: %+v", rec)
	}
	if rec.URGCount != 1 || rec.BwdURG != 1 || rec.FwdURG != 0 {
		t.Errorf("unexpected URG counters: total=%d fwd=%d bwd=%d", rec.URGCount, rec.FwdURG, rec.BwdURG)
	}
	if rec.InitWinFwd != 1060 || rec.InitWinBwd != 1060 {
		t.Errorf("init windows = %d/%d, want 1060/1060", rec.InitWinFwd, rec.InitWinBwd)
	}
	if !rec.SrcIP.Equal(hostA) || rec.SrcPort != 51000 {
		t.Errorf("forward endpoint = %v:%d, want the originator", rec.SrcIP, rec.SrcPort)
	}
}

func TestDrain_RemovesOnce(t *testing.T) {
	table := New(0)
	table.Upsert(tcpPacket(hostA, hostB, 1000, 22, 0, 80, model.TCPFlags{SYN: true}), 0)
	table.Upsert(tcpPacket(hostA, hostB, 1001, 22, 0, 80, model.TCPFlags{RST: true}), 0)

	now := epoch.Add(time.Second)
	first := table.Drain(IdleOrTerminated(now, 120*time.Second))
	if len(first) != 1 || first[0].SrcPort != 1001 {
		t.Fatalf("expected only the RST flow to drain, got %d records", len(first))
	}
	second := table.Drain(IdleOrTerminated(now, 120*time.Second))
	if len(second) != 0 {
		t.Fatalf("a drained record was returned again")
	}
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}

	idle := table.Drain(IdleOrTerminated(epoch.Add(121*time.Second), 120*time.Second))
	if len(idle) != 1 {
		t.Fatalf("expected the idle flow to drain, got %d", len(idle))
	}
	if table.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", table.Len())
	}
}

func TestUpsert_AfterDrainStartsNewRecord(t *testing.T) {
	table := New(4)
	table.Upsert(tcpPacket(hostA, hostB, 4000, 80, 0, 100, model.TCPFlags{FIN: true}), 0)
	drained := table.Drain(All)
	if len(drained) != 1 {
		t.Fatalf("Drain(All) returned %d records", len(drained))
	}
	old := drained[0]

	// The next packet comes from the other side, so it defines a fresh forward direction.
	if !table.Upsert(tcpPacket(hostB, hostA, 80, 4000, time.Second, 70, model.TCPFlags{}), 0) {
		t.Fatal("expected a new record after drain")
	}
	rec, _ := table.Snapshot(old.Key)
	if rec.Packets() != 1 || !rec.SrcIP.Equal(hostB) {
		t.Errorf("new record inherited state: packets=%d src=%v", rec.Packets(), rec.SrcIP)
	}
	if old.Packets() != 1 || old.FINCount != 1 {
		t.Errorf("drained record was mutated: packets=%d", old.Packets())
	}
}

func TestUpsert_ActivitySegmentation(t *testing.T) {
	table := New(4)
	timeout := 5 * time.Second
	for _, at := range []time.Duration{0, time.Second, 2 * time.Second, 10 * time.Second, 11 * time.Second} {
		table.Upsert(tcpPacket(hostA, hostB, 5000, 80, at, 100, model.TCPFlags{}), timeout)
	}
	recs := table.Drain(All)
	if len(recs) != 1 {
		t.Fatalf("Drain(All) returned %d records", len(recs))
	}
	rec := recs[0]
	if len(rec.Idle) != 1 || rec.Idle[0] != 8 {
		t.Errorf("Idle = %v, want [8]", rec.Idle)
	}
	if len(rec.Active) != 2 || rec.Active[0] != 2 || rec.Active[1] != 1 {
		t.Errorf("Active = %v, want [2 1]", rec.Active)
	}
}

func TestTable_ConcurrentUpsertAndDrain(t *testing.T) {
	table := New(8)
	const perWorker = 500
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				table.Upsert(tcpPacket(hostA, hostB, uint16(10000+w), 80, time.Duration(i)*time.Millisecond, 64, model.TCPFlags{}), 0)
			}
		}(w)
	}

	var total uint64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			for _, r := range table.Drain(All) {
				total += r.Packets()
			}
		}
	}()
	wg.Wait()
	<-done
	for _, r := range table.Drain(All) {
		total += r.Packets()
	}

	if total != 4*perWorker {
		t.Errorf("packets accounted = %d, want %d", total, 4*perWorker)
	}
}
