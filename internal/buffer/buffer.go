// Package buffer implements tuple buffering for time-ordered output.
package buffer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/buffer"
	"github.com/jittakal/geobin/pkg/track"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Buffer = (*TupleBuffer)(nil)

type entry struct {
	seq   uint64
	tuple track.PointTuple
}

// TupleBuffer collects tuples and releases them sorted by (Dtg, seq).
// A maxRecords of zero or less means unbounded.
type TupleBuffer struct {
	entries        []entry
	maxRecords     int
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// New creates a new tuple buffer.
func New(maxRecords int) *TupleBuffer {
	b := &TupleBuffer{maxRecords: maxRecords}
	b.reset()
	return b
}

// Add adds a tuple to the buffer.
func (b *TupleBuffer) Add(seq uint64, t track.PointTuple) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxRecords > 0 && len(b.entries) >= b.maxRecords {
		return fmt.Errorf("%w: max records (%d) reached", errors.ErrBufferFull, b.maxRecords)
	}

	b.entries = append(b.entries, entry{seq: seq, tuple: t})
	b.currentSize += int64(estimateSize(t))

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return nil
}

// Drain removes and returns all tuples sorted by timestamp. Equal timestamps
// keep their sequence order regardless of insertion order.
func (b *TupleBuffer) Drain() []track.PointTuple {
	b.mu.Lock()
	entries := b.entries
	b.reset()
	b.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].tuple.Dtg != entries[j].tuple.Dtg {
			return entries[i].tuple.Dtg < entries[j].tuple.Dtg
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]track.PointTuple, len(entries))
	for i, e := range entries {
		out[i] = e.tuple
	}
	return out
}

// Stats returns current buffer statistics.
func (b *TupleBuffer) Stats() buffer.Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return buffer.Stats{
		RecordCount:    len(b.entries),
		SizeBytes:      b.currentSize,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// IsEmpty returns true if the buffer is empty.
func (b *TupleBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries) == 0
}

// Reset clears the buffer and resets all statistics.
func (b *TupleBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *TupleBuffer) reset() {
	capacity := b.maxRecords
	if capacity <= 0 || capacity > 4096 {
		capacity = 4096
	}
	b.entries = make([]entry, 0, capacity)
	b.currentSize = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

// estimateSize estimates the in-memory size of a tuple in bytes.
func estimateSize(t track.PointTuple) int {
	size := 8 + 4 + 4 + 8
	if t.TrackID != nil {
		size += len(*t.TrackID)
	}
	if t.Label != nil {
		size += 8
	}
	return size
}
