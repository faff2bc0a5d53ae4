package encoder

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/linkedin/goavro/v2"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/encoder"
	"github.com/jittakal/geobin/pkg/track"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// avroBlockSize is the number of tuples buffered per OCF block.
const avroBlockSize = 1000

// AvroEncoder writes tuples as an Avro object container file with optional
// gzip compression of the whole stream.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for point tuples.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "PointTuple",
		"namespace": "io.geobin.track",
		"fields": [
			{"name": "dtg", "type": "long"},
			{"name": "lat", "type": "float"},
			{"name": "lon", "type": "float"},
			{"name": "track_id", "type": ["null", "string"], "default": null},
			{"name": "label", "type": ["null", "long"], "default": null}
		]
	}`
}

func (e *AvroEncoder) gzipped() bool {
	return strings.EqualFold(e.compression, "gzip")
}

// NewWriter returns a writer that appends tuples to an OCF stream.
func (e *AvroEncoder) NewWriter(w io.Writer) (encoder.TupleWriter, error) {
	aw := &avroWriter{}
	out := w
	if e.gzipped() {
		aw.gz = gzip.NewWriter(w)
		out = aw.gz
	}

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     out,
		Codec: e.codec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}
	aw.ocf = ocf
	return aw, nil
}

// Format returns the file format.
func (e *AvroEncoder) Format() track.FileFormat {
	return track.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzipped() {
		return ".avro.gz"
	}
	return ".avro"
}

type avroWriter struct {
	ocf     *goavro.OCFWriter
	gz      *gzip.Writer
	pending []any
	records int64
	closed  bool
}

func (a *avroWriter) Write(t track.PointTuple) error {
	if a.closed {
		return apperrors.ErrWriterClosed
	}
	a.pending = append(a.pending, toAvroMap(t))
	if len(a.pending) >= avroBlockSize {
		return a.flush()
	}
	return nil
}

func (a *avroWriter) flush() error {
	if len(a.pending) == 0 {
		return nil
	}
	if err := a.ocf.Append(a.pending); err != nil {
		return &apperrors.SinkError{Records: a.records, Err: err}
	}
	a.records += int64(len(a.pending))
	a.pending = a.pending[:0]
	return nil
}

func (a *avroWriter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.flush(); err != nil {
		return err
	}
	if a.gz != nil {
		if err := a.gz.Close(); err != nil {
			return &apperrors.SinkError{Records: a.records, Err: fmt.Errorf("failed to close gzip writer: %w", err)}
		}
	}
	return nil
}

// toAvroMap converts a tuple to its Avro map representation.
func toAvroMap(t track.PointTuple) map[string]any {
	m := map[string]any{
		"dtg":      t.Dtg,
		"lat":      t.Lat,
		"lon":      t.Lon,
		"track_id": nil,
		"label":    nil,
	}
	if t.TrackID != nil {
		m["track_id"] = goavro.Union("string", *t.TrackID)
	}
	if t.Label != nil {
		m["label"] = goavro.Union("long", *t.Label)
	}
	return m
}
