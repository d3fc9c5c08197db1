package flowtable

import (
	"hash/fnv"
	"sync"
	"time"

	"FlowGuard/internal/model"
)

const defaultShardCount = 256

// Shard is one partition of the table, guarded by its own lock.
type Shard struct {
	flows map[Key]*Record
	mu    sync.RWMutex
}

// Table maps flow keys to live records. Records never leave the table except through Drain.
type Table struct {
	shards     []*Shard
	shardCount uint32
}

// New creates a table with numShards partitions.
func New(numShards uint32) *Table {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	t := &Table{
		shards:     make([]*Shard, numShards),
		shardCount: numShards,
	}
	for i := range t.shards {
		t.shards[i] = &Shard{flows: make(map[Key]*Record)}
	}
	return t
}

// Upsert finds or creates the record for the packet's flow and folds the packet into it,
// all within a single shard critical section. It reports whether a new record was created.
func (t *Table) Upsert(info *model.PacketInfo, activityTimeout time.Duration) bool {
	ft := info.FiveTuple
	key := NewKey(ft.SrcIP, ft.DstIP, ft.SrcPort, ft.DstPort, ft.Protocol)

	shard := t.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.flows[key]
	if !ok {
		rec = newRecord(key, info)
		shard.flows[key] = rec
	}
	rec.update(info, activityTimeout)
	return !ok
}

// Drain removes every record for which pred holds and returns them. The caller owns the
// returned records; the table never touches them again.
func (t *Table) Drain(pred func(*Record) bool) []*Record {
	var drained []*Record
	for _, shard := range t.shards {
		shard.mu.Lock()
		for key, rec := range shard.flows {
			if pred(rec) {
				delete(shard.flows, key)
				drained = append(drained, rec)
			}
		}
		shard.mu.Unlock()
	}
	for _, rec := range drained {
		rec.closeActivity()
	}
	return drained
}

// Len returns the number of live records.
func (t *Table) Len() int {
	n := 0
	for _, shard := range t.shards {
		shard.mu.RLock()
		n += len(shard.flows)
		shard.mu.RUnlock()
	}
	return n
}

// Snapshot returns a copy of the live record for key.
func (t *Table) Snapshot(key Key) (*Record, bool) {
	shard := t.getShard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	rec, ok := shard.flows[key]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// getShard returns the appropriate shard for a given key.
func (t *Table) getShard(key Key) *Shard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return t.shards[hasher.Sum32()%t.shardCount]
}

// IdleOrTerminated returns the periodic sweep predicate: a record with at least one packet is
// due when it has been silent for longer than timeout, or when it has seen FIN or RST.
func IdleOrTerminated(now time.Time, timeout time.Duration) func(*Record) bool {
	return func(r *Record) bool {
		if r.Packets() < 1 {
			return false
		}
		return now.Sub(r.LastSeen) > timeout || r.Terminated()
	}
}

// All is the shutdown sweep predicate.
func All(r *Record) bool {
	return r.Packets() >= 1
}
