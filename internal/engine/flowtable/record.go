package flowtable

import (
	"net"
	"time"

	"FlowGuard/internal/model"
)

// Record is the accumulated state of one bidirectional flow.
// The packet that created the record defines the forward direction.
//
// Sample sequences hold packet lengths in bytes and time samples in seconds.
type Record struct {
	Key      Key
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8

	StartTime    time.Time
	LastSeen     time.Time
	LastPacket   time.Time
	LastFwd      time.Time
	LastBwd      time.Time
	LastActivity time.Time
	ActiveStart  time.Time
	IsActive     bool

	FwdPackets     uint64
	BwdPackets     uint64
	FwdBytes       uint64
	BwdBytes       uint64
	FwdHeaderBytes uint64
	BwdHeaderBytes uint64

	FINCount uint64
	SYNCount uint64
	RSTCount uint64
	PSHCount uint64
	ACKCount uint64
	URGCount uint64
	ECECount uint64
	CWRCount uint64
	FwdPSH   uint64
	BwdPSH   uint64
	FwdURG   uint64
	BwdURG   uint64

	FwdLengths []float64
	BwdLengths []float64
	AllLengths []float64
	FlowIAT    []float64
	FwdIAT     []float64
	BwdIAT     []float64
	Active     []float64
	Idle       []float64

	InitWinFwd uint16
	InitWinBwd uint16
	initFwdSet bool
	initBwdSet bool
}

func newRecord(key Key, info *model.PacketInfo) *Record {
	ft := info.FiveTuple
	return &Record{
		Key:          key,
		SrcIP:        ft.SrcIP,
		DstIP:        ft.DstIP,
		SrcPort:      ft.SrcPort,
		DstPort:      ft.DstPort,
		Protocol:     ft.Protocol,
		StartTime:    info.Timestamp,
		LastSeen:     info.Timestamp,
		LastPacket:   info.Timestamp,
		LastActivity: info.Timestamp,
		ActiveStart:  info.Timestamp,
		IsActive:     true,
	}
}

// Packets returns the number of packets seen in both directions.
func (r *Record) Packets() uint64 {
	return r.FwdPackets + r.BwdPackets
}

// Bytes returns the number of bytes seen in both directions.
func (r *Record) Bytes() uint64 {
	return r.FwdBytes + r.BwdBytes
}

// IsForward reports whether a packet from srcIP:srcPort travels in the record's forward direction.
func (r *Record) IsForward(srcIP net.IP, srcPort uint16) bool {
	return srcIP.Equal(r.SrcIP) && srcPort == r.SrcPort
}

// Terminated reports whether a FIN or RST has been observed.
func (r *Record) Terminated() bool {
	return r.FINCount > 0 || r.RSTCount > 0
}

// update folds one packet into the record. Callers hold the shard lock.
func (r *Record) update(info *model.PacketInfo, activityTimeout time.Duration) {
	ts := info.Timestamp
	fwd := r.IsForward(info.FiveTuple.SrcIP, info.FiveTuple.SrcPort)
	length := float64(info.Length)

	if r.Packets() > 0 {
		r.FlowIAT = append(r.FlowIAT, ts.Sub(r.LastPacket).Seconds())
	}

	if fwd {
		if !r.LastFwd.IsZero() {
			r.FwdIAT = append(r.FwdIAT, ts.Sub(r.LastFwd).Seconds())
		}
		r.LastFwd = ts
		r.FwdPackets++
		r.FwdBytes += uint64(info.Length)
		r.FwdHeaderBytes += uint64(info.HeaderLength)
		r.FwdLengths = append(r.FwdLengths, length)
	} else {
		if !r.LastBwd.IsZero() {
			r.BwdIAT = append(r.BwdIAT, ts.Sub(r.LastBwd).Seconds())
		}
		r.LastBwd = ts
		r.BwdPackets++
		r.BwdBytes += uint64(info.Length)
		r.BwdHeaderBytes += uint64(info.HeaderLength)
		r.BwdLengths = append(r.BwdLengths, length)
	}
	r.AllLengths = append(r.AllLengths, length)

	if activityTimeout > 0 {
		r.trackActivity(ts, activityTimeout)
	}
	r.LastPacket = ts
	r.LastSeen = ts

	if info.Transport == model.TransportTCP {
		r.countFlags(info.Flags, fwd)
		if fwd && !r.initFwdSet {
			r.InitWinFwd, r.initFwdSet = info.Window, true
		} else if !fwd && !r.initBwdSet {
			r.InitWinBwd, r.initBwdSet = info.Window, true
		}
	}
}

func (r *Record) countFlags(f model.TCPFlags, fwd bool) {
	if f.FIN {
		r.FINCount++
	}
	if f.SYN {
		r.SYNCount++
	}
	if f.RST {
		r.RSTCount++
	}
	if f.PSH {
		r.PSHCount++
		if fwd {
			r.FwdPSH++
		} else {
			r.BwdPSH++
		}
	}
	if f.ACK {
		r.ACKCount++
	}
	if f.URG {
		r.URGCount++
		if fwd {
			r.FwdURG++
		} else {
			r.BwdURG++
		}
	}
	if f.CWR {
		r.CWRCount++
	}
	if f.ECE {
		r.ECECount++
	}
}

// trackActivity splits the flow into active and idle periods separated by gaps longer than timeout.
func (r *Record) trackActivity(ts time.Time, timeout time.Duration) {
	gap := ts.Sub(r.LastActivity)
	if gap > timeout {
		if active := r.LastActivity.Sub(r.ActiveStart); active > 0 {
			r.Active = append(r.Active, active.Seconds())
		}
		r.Idle = append(r.Idle, gap.Seconds())
		r.ActiveStart = ts
	}
	r.LastActivity = ts
	r.IsActive = true
}

// closeActivity records the open active period. It runs once, on the drained record.
func (r *Record) closeActivity() {
	if !r.IsActive {
		return
	}
	if active := r.LastActivity.Sub(r.ActiveStart); active > 0 {
		r.Active = append(r.Active, active.Seconds())
	}
	r.IsActive = false
}

// clone returns a deep copy of the record.
func (r *Record) clone() *Record {
	c := *r
	c.FwdLengths = append([]float64(nil), r.FwdLengths...)
	c.BwdLengths = append([]float64(nil), r.BwdLengths...)
	c.AllLengths = append([]float64(nil), r.AllLengths...)
	c.FlowIAT = append([]float64(nil), r.FlowIAT...)
	c.FwdIAT = append([]float64(nil), r.FwdIAT...)
	c.BwdIAT = append([]float64(nil), r.BwdIAT...)
	c.Active = append([]float64(nil), r.Active...)
	c.Idle = append([]float64(nil), r.Idle...)
	return &c
}
