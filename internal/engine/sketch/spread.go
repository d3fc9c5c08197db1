package sketch

import (
	"bytes"
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// bitmapBits is the size of the per-bucket distinct counter.
const bitmapBits = 1024

type spreadBucket struct {
	key    []byte
	votes  uint32
	bitmap [bitmapBits / 64]uint64
}

func (b *spreadBucket) claim(key []byte) {
	b.key = append(b.key[:0], key...)
	b.votes = 1
	b.bitmap = [bitmapBits / 64]uint64{}
}

// estimate is the linear-counting estimate of the distinct elements seen by the bucket.
func (b *spreadBucket) estimate() uint32 {
	set := 0
	for _, w := range b.bitmap {
		set += bits.OnesCount64(w)
	}
	zero := bitmapBits - set
	if zero == 0 {
		zero = 1
	}
	return uint32(math.Round(-bitmapBits * math.Log(float64(zero)/bitmapBits)))
}

// Spread estimates, per key, how many distinct elements were paired with it. Buckets are
// claimed by majority vote like CountMin, and each holds a linear-counting bitmap of the
// elements seen by its key. Not safe for concurrent use.
type Spread struct {
	w, d  uint32
	seeds []uint64
	table [][]spreadBucket
}

// NewSpread creates a sketch; zero dimensions take the defaults.
func NewSpread(width, depth uint32) *Spread {
	if width == 0 {
		width = defaultWidth
	}
	if depth == 0 {
		depth = defaultDepth
	}
	s := &Spread{w: width, d: depth, seeds: newSeeds(depth), table: make([][]spreadBucket, depth)}
	for i := range s.table {
		s.table[i] = make([]spreadBucket, width)
	}
	return s
}

// Insert records that key was paired with elem.
func (s *Spread) Insert(key, elem []byte) {
	bit := xxhash.Sum64(elem) % bitmapBits
	h := xxhash.Sum64(key)
	for i := uint32(0); i < s.d; i++ {
		b := &s.table[i][index(h, s.seeds[i], s.w)]
		switch {
		case b.votes == 0:
			b.claim(key)
		case bytes.Equal(b.key, key):
			b.votes++
		default:
			b.votes--
			if b.votes > 0 {
				continue
			}
			b.claim(key)
		}
		b.bitmap[bit/64] |= 1 << (bit % 64)
	}
}

// Query returns the estimated number of distinct elements paired with key.
func (s *Spread) Query(key []byte) uint32 {
	var est uint32
	h := xxhash.Sum64(key)
	for i := uint32(0); i < s.d; i++ {
		b := &s.table[i][index(h, s.seeds[i], s.w)]
		if b.votes > 0 && bytes.Equal(b.key, key) {
			est = max(est, b.estimate())
		}
	}
	return est
}

// Spreaders returns the keys whose estimate is at least threshold, largest first.
func (s *Spread) Spreaders(threshold uint32) []HeavyRecord {
	est := make(map[string]uint32)
	for i := range s.table {
		for j := range s.table[i] {
			b := &s.table[i][j]
			if b.votes > 0 {
				k := string(b.key)
				est[k] = max(est[k], b.estimate())
			}
		}
	}
	return collect(est, threshold)
}

// Reset clears every bucket.
func (s *Spread) Reset() {
	for i := range s.table {
		for j := range s.table[i] {
			s.table[i][j].votes = 0
			s.table[i][j].key = s.table[i][j].key[:0]
			s.table[i][j].bitmap = [bitmapBits / 64]uint64{}
		}
	}
}
