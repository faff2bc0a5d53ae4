// Package encoder defines interfaces for encoding point tuples to various
// output formats.
package encoder

import (
	"io"

	"github.com/jittakal/geobin/pkg/track"
)

// TupleWriter streams tuples to an underlying writer.
type TupleWriter interface {
	// Write encodes a single tuple.
	Write(t track.PointTuple) error

	// Close flushes buffered data and writes any trailer. It does not close
	// the underlying writer.
	Close() error
}

// Encoder creates tuple writers for a specific output format.
type Encoder interface {
	// NewWriter returns a TupleWriter that encodes into w.
	NewWriter(w io.Writer) (TupleWriter, error)

	// Format returns the file format this encoder produces.
	Format() track.FileFormat

	// FileExtension returns the file extension (e.g., ".bin", ".parquet").
	FileExtension() string
}
