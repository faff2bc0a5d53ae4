package encoder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jittakal/geobin/pkg/encoder"
	"github.com/jittakal/geobin/pkg/track"
)

// Factory creates encoders based on format and configuration.
type Factory struct {
	format      track.FileFormat
	compression string
	variant     BinVariant
}

// NewFactory creates a new encoder factory. The variant only applies to the
// bin format and the compression is ignored there.
func NewFactory(format track.FileFormat, compression string, variant BinVariant) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
		variant:     variant,
	}
}

// CreateEncoder creates an encoder based on the configured format. An empty
// compression selects the format default.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	if err := f.checkCompression(); err != nil {
		return nil, err
	}
	switch f.format {
	case track.FormatBin, "":
		return NewBinEncoder(f.variant), nil
	case track.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case track.FormatAvro:
		return NewAvroEncoder(f.compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// checkCompression rejects codecs the format cannot write. Bin ignores
// compression entirely.
func (f *Factory) checkCompression() error {
	if f.format == track.FormatBin || f.format == "" || f.compression == "" {
		return nil
	}
	c := strings.ToLower(f.compression)
	if c == "none" {
		c = "uncompressed"
	}
	supported := SupportedCompressions(f.format)
	if len(supported) == 0 || slices.Contains(supported, c) {
		return nil
	}
	return fmt.Errorf("unsupported compression %q for %s format, supported: %s",
		f.compression, f.format, strings.Join(supported, ", "))
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []track.FileFormat {
	return []track.FileFormat{
		track.FormatBin,
		track.FormatParquet,
		track.FormatAvro,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format track.FileFormat) []string {
	switch format {
	case track.FormatBin:
		return []string{"uncompressed"}
	case track.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "zstd"}
	case track.FormatAvro:
		return []string{"uncompressed", "gzip"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format track.FileFormat) string {
	switch format {
	case track.FormatParquet:
		return "snappy"
	case track.FormatAvro:
		return "gzip"
	default:
		return "uncompressed"
	}
}
