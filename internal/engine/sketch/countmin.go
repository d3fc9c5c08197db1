// Package sketch keeps fixed-memory per-source traffic summaries: the heaviest senders and the
// sources that contact the most distinct destinations.
package sketch

import (
	"bytes"
	"math/rand"
	"slices"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultWidth = 4096
	defaultDepth = 3
)

// HeavyRecord is one reported key with its estimated count.
type HeavyRecord struct {
	Key   []byte
	Count uint32
}

type bucket struct {
	key []byte
	c   uint32
}

// CountMin is a majority-vote count sketch: each bucket keeps one key and a counter that other
// keys decrement. Counts are never overestimated for the key a bucket holds. Not safe for
// concurrent use.
type CountMin struct {
	w, d  uint32
	seeds []uint64
	table [][]bucket
}

// NewCountMin creates a sketch; zero dimensions take the defaults.
func NewCountMin(width, depth uint32) *CountMin {
	if width == 0 {
		width = defaultWidth
	}
	if depth == 0 {
		depth = defaultDepth
	}
	t := &CountMin{w: width, d: depth, seeds: newSeeds(depth), table: make([][]bucket, depth)}
	for i := range t.table {
		t.table[i] = make([]bucket, width)
	}
	return t
}

func newSeeds(n uint32) []uint64 {
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = rand.Uint64()
	}
	return seeds
}

// index maps a key hash to a column of the row identified by seed. The key is hashed once per
// insert and each row remixes it with the splitmix64 finalizer.
func index(h, seed uint64, width uint32) uint32 {
	z := h ^ seed
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return uint32(z % uint64(width))
}

// Insert adds n to key.
func (t *CountMin) Insert(key []byte, n uint32) {
	h := xxhash.Sum64(key)
	for i := uint32(0); i < t.d; i++ {
		b := &t.table[i][index(h, t.seeds[i], t.w)]
		switch {
		case b.c == 0:
			b.key = append(b.key[:0], key...)
			b.c = n
		case bytes.Equal(b.key, key):
			b.c += n
		case b.c > n:
			b.c -= n
		default:
			b.key = append(b.key[:0], key...)
			b.c = n - b.c
			if b.c == 0 {
				b.key = b.key[:0]
			}
		}
	}
}

// Query returns the estimated count of key.
func (t *CountMin) Query(key []byte) uint32 {
	var est uint32
	h := xxhash.Sum64(key)
	for i := uint32(0); i < t.d; i++ {
		b := t.table[i][index(h, t.seeds[i], t.w)]
		if b.c > 0 && bytes.Equal(b.key, key) {
			est = max(est, b.c)
		}
	}
	return est
}

// HeavyHitters returns the keys whose estimate is at least threshold, largest first.
func (t *CountMin) HeavyHitters(threshold uint32) []HeavyRecord {
	hh := make(map[string]uint32)
	for i := range t.table {
		for _, b := range t.table[i] {
			if b.c > 0 {
				k := string(b.key)
				hh[k] = max(hh[k], b.c)
			}
		}
	}
	return collect(hh, threshold)
}

// Reset clears every bucket.
func (t *CountMin) Reset() {
	for i := range t.table {
		for j := range t.table[i] {
			t.table[i][j].c = 0
			t.table[i][j].key = t.table[i][j].key[:0]
		}
	}
}

func collect(counts map[string]uint32, threshold uint32) []HeavyRecord {
	out := make([]HeavyRecord, 0)
	for k, v := range counts {
		if v < threshold {
			continue
		}
		out = append(out, HeavyRecord{Key: []byte(k), Count: v})
	}
	sortRecords(out)
	return out
}

// sortRecords orders records by count, largest first, then by key.
func sortRecords(recs []HeavyRecord) {
	slices.SortFunc(recs, func(a, b HeavyRecord) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return bytes.Compare(a.Key, b.Key)
	})
}
