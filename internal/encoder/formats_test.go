package encoder

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/geobin/pkg/track"
)

func sampleTuples(n int) []track.PointTuple {
	out := make([]track.PointTuple, n)
	for i := range out {
		out[i] = track.PointTuple{
			Dtg: int64(1700000000000 + i),
			Lat: float32(i) / 10,
			Lon: -float32(i) / 10,
		}
		if i%2 == 0 {
			out[i].TrackID = strPtr("vessel-1")
			out[i].Label = int64Ptr(int64(i))
		}
	}
	return out
}

func writeAll(t *testing.T, f *Factory, tuples []track.PointTuple) []byte {
	t.Helper()
	enc, err := f.CreateEncoder()
	if err != nil {
		t.Fatalf("CreateEncoder() error = %v", err)
	}
	var buf bytes.Buffer
	w, err := enc.NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	for _, tp := range tuples {
		if err := w.Write(tp); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestAvroEncoder_RoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		compression string
		count       int
	}{
		{"uncompressed", "uncompressed", 5},
		{"gzip", "gzip", 5},
		{"spans blocks", "uncompressed", avroBlockSize + 3},
		{"empty", "gzip", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tuples := sampleTuples(tt.count)
			data := writeAll(t, NewFactory(track.FormatAvro, tt.compression, BinBasic), tuples)

			var r io.Reader = bytes.NewReader(data)
			if tt.compression == "gzip" {
				gz, err := gzip.NewReader(r)
				if err != nil {
					t.Fatalf("gzip.NewReader() error = %v", err)
				}
				defer gz.Close()
				r = gz
			}

			ocf, err := goavro.NewOCFReader(r)
			if err != nil {
				t.Fatalf("NewOCFReader() error = %v", err)
			}
			var got int
			for ocf.Scan() {
				datum, err := ocf.Read()
				if err != nil {
					t.Fatalf("Read() error = %v", err)
				}
				rec := datum.(map[string]any)
				want := tuples[got]
				if rec["dtg"].(int64) != want.Dtg {
					t.Errorf("record %d dtg = %v, want %d", got, rec["dtg"], want.Dtg)
				}
				if rec["lat"].(float32) != want.Lat {
					t.Errorf("record %d lat = %v, want %v", got, rec["lat"], want.Lat)
				}
				if want.TrackID == nil {
					if rec["track_id"] != nil {
						t.Errorf("record %d track_id = %v, want nil", got, rec["track_id"])
					}
				} else if u := rec["track_id"].(map[string]any); u["string"] != *want.TrackID {
					t.Errorf("record %d track_id = %v, want %s", got, u, *want.TrackID)
				}
				got++
			}
			if err := ocf.Err(); err != nil {
				t.Fatalf("scan error = %v", err)
			}
			if got != tt.count {
				t.Errorf("read %d records, want %d", got, tt.count)
			}
		})
	}
}

func TestParquetEncoder_RoundTrip(t *testing.T) {
	for _, compression := range SupportedCompressions(track.FormatParquet) {
		t.Run(compression, func(t *testing.T) {
			tuples := sampleTuples(parquetBatchSize + 10)
			data := writeAll(t, NewFactory(track.FormatParquet, compression, BinBasic), tuples)

			r := parquet.NewGenericReader[TupleParquet](bytes.NewReader(data))
			defer r.Close()
			if r.NumRows() != int64(len(tuples)) {
				t.Fatalf("NumRows() = %d, want %d", r.NumRows(), len(tuples))
			}

			rows := make([]TupleParquet, len(tuples))
			n := 0
			for n < len(rows) {
				m, err := r.Read(rows[n:])
				n += m
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("Read() error = %v", err)
				}
			}
			if n != len(tuples) {
				t.Fatalf("read %d rows, want %d", n, len(tuples))
			}
			for i, row := range rows {
				want := tuples[i]
				if row.Dtg != want.Dtg || row.Lat != want.Lat || row.Lon != want.Lon {
					t.Fatalf("row %d = %+v, want %+v", i, row, want)
				}
				if (row.Label == nil) != (want.Label == nil) {
					t.Fatalf("row %d label presence mismatch", i)
				}
				if want.Label != nil && *row.Label != *want.Label {
					t.Errorf("row %d label = %d, want %d", i, *row.Label, *want.Label)
				}
			}
		})
	}
}

func TestFactory_CreateEncoder(t *testing.T) {
	tests := []struct {
		name    string
		format  track.FileFormat
		wantExt string
		wantErr bool
	}{
		{"bin", track.FormatBin, ".bin", false},
		{"empty defaults to bin", "", ".bin", false},
		{"parquet", track.FormatParquet, ".parquet", false},
		{"avro gzip", track.FormatAvro, ".avro.gz", false},
		{"unsupported", track.FileFormat("csv"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewFactory(tt.format, "gzip", BinExtended).CreateEncoder()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateEncoder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if enc.FileExtension() != tt.wantExt {
				t.Errorf("FileExtension() = %q, want %q", enc.FileExtension(), tt.wantExt)
			}
		})
	}
}

func TestFactory_Compression(t *testing.T) {
	tests := []struct {
		name        string
		format      track.FileFormat
		compression string
		wantErr     bool
	}{
		{"parquet default", track.FormatParquet, "", false},
		{"parquet zstd", track.FormatParquet, "zstd", false},
		{"parquet upper case", track.FormatParquet, "SNAPPY", false},
		{"parquet none", track.FormatParquet, "none", false},
		{"parquet lz4", track.FormatParquet, "lz4", true},
		{"parquet brotli", track.FormatParquet, "brotli", true},
		{"avro gzip", track.FormatAvro, "gzip", false},
		{"avro snappy", track.FormatAvro, "snappy", true},
		{"bin ignores compression", track.FormatBin, "lz4", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(tt.format, tt.compression, BinBasic).CreateEncoder()
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateEncoder() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_BinVariant(t *testing.T) {
	enc, err := NewFactory(track.FormatBin, "", BinExtended).CreateEncoder()
	if err != nil {
		t.Fatalf("CreateEncoder() error = %v", err)
	}
	bin, ok := enc.(*BinEncoder)
	if !ok {
		t.Fatalf("expected *BinEncoder, got %T", enc)
	}
	if bin.Variant() != BinExtended {
		t.Errorf("Variant() = %v, want extended", bin.Variant())
	}
}

func TestDefaultCompression(t *testing.T) {
	tests := []struct {
		format track.FileFormat
		want   string
	}{
		{track.FormatBin, "uncompressed"},
		{track.FormatParquet, "snappy"},
		{track.FormatAvro, "gzip"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := DefaultCompression(tt.format); got != tt.want {
				t.Errorf("DefaultCompression() = %q, want %q", got, tt.want)
			}
		})
	}
}
