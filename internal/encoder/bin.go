package encoder

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf16"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/encoder"
	"github.com/jittakal/geobin/pkg/track"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*BinEncoder)(nil)

// BinVariant selects the fixed record layout.
type BinVariant int

const (
	// BinBasic is dtg, lat, lon and track hash.
	BinBasic BinVariant = iota
	// BinExtended appends a 64-bit label to the basic layout.
	BinExtended
)

// Record sizes in bytes. All fields are little-endian:
//
//	offset 0  int64   dtg (epoch milliseconds)
//	offset 8  float32 latitude
//	offset 12 float32 longitude
//	offset 16 int32   track id hash
//	offset 20 int64   label (extended only)
const (
	BinBasicSize    = 20
	BinExtendedSize = 28
)

// Size returns the record size of the variant.
func (v BinVariant) Size() int {
	if v == BinExtended {
		return BinExtendedSize
	}
	return BinBasicSize
}

func (v BinVariant) String() string {
	if v == BinExtended {
		return "extended"
	}
	return "basic"
}

// BinRecord is a decoded record. TrackHash is the hashed track id and
// cannot be reversed.
type BinRecord struct {
	Dtg       int64
	Lat       float32
	Lon       float32
	TrackHash int32
	Label     int64
}

// HashTrackID returns the 32-bit hash stored for a track id. It is the Java
// String.hashCode of the id over UTF-16 code units, so values match other
// readers of this format. A nil id hashes to 0.
func HashTrackID(id *string) int32 {
	if id == nil {
		return 0
	}
	var h int32
	for _, c := range utf16.Encode([]rune(*id)) {
		h = 31*h + int32(c)
	}
	return h
}

// AppendBin appends the encoded tuple to dst. A missing label is written
// as 0 in the extended variant.
func AppendBin(dst []byte, t track.PointTuple, v BinVariant) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(t.Dtg))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(t.Lat))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(t.Lon))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(HashTrackID(t.TrackID)))
	if v == BinExtended {
		var label int64
		if t.Label != nil {
			label = *t.Label
		}
		dst = binary.LittleEndian.AppendUint64(dst, uint64(label))
	}
	return dst
}

// EncodeBin encodes one tuple into a new slice.
func EncodeBin(t track.PointTuple, v BinVariant) []byte {
	return AppendBin(make([]byte, 0, v.Size()), t, v)
}

// DecodeBin decodes exactly one record.
func DecodeBin(b []byte, v BinVariant) (BinRecord, error) {
	if len(b) != v.Size() {
		return BinRecord{}, fmt.Errorf("%s record needs %d bytes, got %d", v, v.Size(), len(b))
	}
	r := BinRecord{
		Dtg:       int64(binary.LittleEndian.Uint64(b[0:8])),
		Lat:       math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
		Lon:       math.Float32frombits(binary.LittleEndian.Uint32(b[12:16])),
		TrackHash: int32(binary.LittleEndian.Uint32(b[16:20])),
	}
	if v == BinExtended {
		r.Label = int64(binary.LittleEndian.Uint64(b[20:28]))
	}
	return r, nil
}

// DecodeAllBin reads records until EOF. A trailing partial record is an
// error.
func DecodeAllBin(r io.Reader, v BinVariant) ([]BinRecord, error) {
	var out []BinRecord
	buf := make([]byte, v.Size())
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return out, nil
		}
		if err == io.ErrUnexpectedEOF {
			return out, fmt.Errorf("truncated %s record after %d records", v, len(out))
		}
		if err != nil {
			return out, err
		}
		rec, _ := DecodeBin(buf, v)
		out = append(out, rec)
	}
}

// BinEncoder produces the fixed-width binary track format.
type BinEncoder struct {
	variant BinVariant
}

// NewBinEncoder creates a binary encoder for the given variant.
func NewBinEncoder(v BinVariant) *BinEncoder {
	return &BinEncoder{variant: v}
}

// Variant returns the record layout in use.
func (e *BinEncoder) Variant() BinVariant { return e.variant }

// NewWriter returns a writer that issues exactly one Write per record, so
// the output is always a whole number of records.
func (e *BinEncoder) NewWriter(w io.Writer) (encoder.TupleWriter, error) {
	return &binWriter{w: w, variant: e.variant, buf: make([]byte, 0, e.variant.Size())}, nil
}

func (e *BinEncoder) Format() track.FileFormat { return track.FormatBin }

func (e *BinEncoder) FileExtension() string { return ".bin" }

type binWriter struct {
	w       io.Writer
	variant BinVariant
	buf     []byte
	records int64
	closed  bool
}

func (b *binWriter) Write(t track.PointTuple) error {
	if b.closed {
		return apperrors.ErrWriterClosed
	}
	b.buf = AppendBin(b.buf[:0], t, b.variant)
	n, err := b.w.Write(b.buf)
	if err == nil && n != len(b.buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &apperrors.SinkError{Records: b.records, Err: err}
	}
	b.records++
	return nil
}

func (b *binWriter) Close() error {
	b.closed = true
	return nil
}
