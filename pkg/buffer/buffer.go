// Package buffer defines interfaces for tuple buffering operations.
//
// Buffers hold extracted tuples when output must be ordered by time, so the
// whole collection can be sorted before it is written.
package buffer

import (
	"time"

	"github.com/jittakal/geobin/pkg/track"
)

// Stats describes the current contents of a buffer.
type Stats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// Buffer manages buffering of tuples before they are written.
// All implementations must be thread-safe.
type Buffer interface {
	// Add adds a tuple with its encounter sequence number.
	// Returns an error if the buffer is full.
	Add(seq uint64, t track.PointTuple) error

	// Drain removes and returns all tuples ordered by timestamp, ties broken
	// by sequence number. The buffer is reset after draining.
	Drain() []track.PointTuple

	// Stats returns current buffer statistics without modifying the buffer.
	Stats() Stats

	// IsEmpty returns true if the buffer contains no tuples.
	IsEmpty() bool

	// Reset clears the buffer and resets all statistics.
	Reset()
}
