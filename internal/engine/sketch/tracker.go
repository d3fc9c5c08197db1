package sketch

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	"FlowGuard/internal/model"

	"github.com/cespare/xxhash/v2"
)

// Config sizes the tracker and sets its reporting thresholds.
type Config struct {
	Width           uint32
	Depth           uint32
	TalkerThreshold uint32
	SpreadThreshold uint32
	TopN            int
}

// Entry is one reported source.
type Entry struct {
	Source string `json:"source"`
	Count  uint32 `json:"count"`
}

// Report summarizes one observation window.
type Report struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// TopTalkers counts packets per source address.
	TopTalkers []Entry `json:"top_talkers"`
	// Spreaders estimates distinct destination address and port pairs per source address.
	Spreaders []Entry `json:"spreaders"`
}

// numShards splits the tracker so that concurrent ingestion rarely contends on one lock. A source
// always maps to the same shard, so per-source estimates stay whole.
const numShards = 16

type trackerShard struct {
	mu      sync.Mutex
	talkers *CountMin
	spread  *Spread
}

// Tracker feeds every packet into both sketches and reports them per window.
type Tracker struct {
	cfg    Config
	shards [numShards]trackerShard

	mu    sync.Mutex
	start time.Time
	last  Report
}

// NewTracker creates a tracker whose first window starts now. Width is the total column count,
// divided evenly between the shards.
func NewTracker(cfg Config) *Tracker {
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	width := cfg.Width
	if width == 0 {
		width = defaultWidth
	}
	width = max(width/numShards, 64)

	t := &Tracker{cfg: cfg, start: time.Now()}
	for i := range t.shards {
		t.shards[i].talkers = NewCountMin(width, cfg.Depth)
		t.shards[i].spread = NewSpread(width, cfg.Depth)
	}
	return t
}

// Observe accounts one packet. It is safe for concurrent use.
func (t *Tracker) Observe(info *model.PacketInfo) {
	ft := info.FiveTuple
	src := ft.SrcIP.To16()
	if src == nil {
		return
	}
	var dst [18]byte
	copy(dst[:16], ft.DstIP.To16())
	binary.BigEndian.PutUint16(dst[16:], ft.DstPort)

	sh := &t.shards[xxhash.Sum64(src)%numShards]
	sh.mu.Lock()
	sh.talkers.Insert(src, 1)
	sh.spread.Insert(src, dst[:])
	sh.mu.Unlock()
}

// Rotate closes the current window, stores and returns its report and starts a new window.
func (t *Tracker) Rotate() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	var talkers, spreaders []HeavyRecord
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		talkers = append(talkers, sh.talkers.HeavyHitters(t.cfg.TalkerThreshold)...)
		spreaders = append(spreaders, sh.spread.Spreaders(t.cfg.SpreadThreshold)...)
		sh.talkers.Reset()
		sh.spread.Reset()
		sh.mu.Unlock()
	}
	sortRecords(talkers)
	sortRecords(spreaders)

	now := time.Now()
	r := Report{
		Start:      t.start,
		End:        now,
		TopTalkers: entries(talkers, t.cfg.TopN),
		Spreaders:  entries(spreaders, t.cfg.TopN),
	}
	t.start = now
	t.last = r
	return r
}

// Last returns the report of the most recently closed window.
func (t *Tracker) Last() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func entries(recs []HeavyRecord, n int) []Entry {
	if len(recs) > n {
		recs = recs[:n]
	}
	out := make([]Entry, len(recs))
	for i, r := range recs {
		out[i] = Entry{Source: net.IP(r.Key).String(), Count: r.Count}
	}
	return out
}
