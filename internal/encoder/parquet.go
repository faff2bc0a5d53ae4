package encoder

import (
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/encoder"
	"github.com/jittakal/geobin/pkg/track"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// parquetBatchSize is the number of rows handed to the writer at once.
const parquetBatchSize = 1024

// TupleParquet is the Parquet row schema for point tuples.
type TupleParquet struct {
	Dtg     int64   `parquet:"dtg"`
	Lat     float32 `parquet:"lat"`
	Lon     float32 `parquet:"lon"`
	TrackID *string `parquet:"track_id,dict,optional"`
	Label   *int64  `parquet:"label,optional"`
}

// ParquetEncoder writes tuples as a Parquet file.
// Supports SNAPPY (default), GZIP and ZSTD page compression.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch strings.ToLower(compression) {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// NewWriter returns a writer that buffers rows and emits the Parquet footer
// on Close.
func (e *ParquetEncoder) NewWriter(w io.Writer) (encoder.TupleWriter, error) {
	schema := parquet.SchemaOf(new(TupleParquet))
	pw := parquet.NewGenericWriter[TupleParquet](
		w,
		schema,
		compressionCodec(e.compressionName),
		parquet.CreatedBy("geobin", "1.0", "0"),
	)
	return &parquetWriter{w: pw, rows: make([]TupleParquet, 0, parquetBatchSize)}, nil
}

// Format returns the file format.
func (e *ParquetEncoder) Format() track.FileFormat {
	return track.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}

type parquetWriter struct {
	w       *parquet.GenericWriter[TupleParquet]
	rows    []TupleParquet
	records int64
	closed  bool
}

func (p *parquetWriter) Write(t track.PointTuple) error {
	if p.closed {
		return apperrors.ErrWriterClosed
	}
	p.rows = append(p.rows, TupleParquet{
		Dtg:     t.Dtg,
		Lat:     t.Lat,
		Lon:     t.Lon,
		TrackID: t.TrackID,
		Label:   t.Label,
	})
	if len(p.rows) >= parquetBatchSize {
		return p.flush()
	}
	return nil
}

func (p *parquetWriter) flush() error {
	if len(p.rows) == 0 {
		return nil
	}
	if _, err := p.w.Write(p.rows); err != nil {
		return &apperrors.SinkError{Records: p.records, Err: err}
	}
	p.records += int64(len(p.rows))
	p.rows = p.rows[:0]
	return nil
}

func (p *parquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.flush(); err != nil {
		return err
	}
	if err := p.w.Close(); err != nil {
		return &apperrors.SinkError{Records: p.records, Err: err}
	}
	return nil
}
