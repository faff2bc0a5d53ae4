// Package encoder writes point tuples in the supported output formats.
//
// # Formats
//
//   - bin: fixed-width little-endian records, 20 bytes basic or 28 bytes
//     extended (with label). No header, no framing.
//   - avro: object container file, optionally gzip compressed.
//   - parquet: columnar file with snappy, gzip or zstd pages.
//
// # Bin layout
//
// Every record is little-endian with no padding between fields:
//
//	offset 0  int64   dtg, epoch milliseconds
//	offset 8  float32 latitude
//	offset 12 float32 longitude
//	offset 16 int32   track id hash (Java String.hashCode, 0 when absent)
//	offset 20 int64   label, extended only
//
// The sizes follow from these widths: 8+4+4+4 = 20 bytes basic and
// 20+8 = 28 bytes extended. They are not 16 and 24; a reader that assumes
// a 32-bit timestamp will misalign every record after the first. Use
// BinVariant.Size rather than a hard-coded stride.
//
// # Usage
//
//	factory := encoder.NewFactory(track.FormatBin, "", encoder.BinExtended)
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    return err
//	}
//	w, err := enc.NewWriter(out)
//	if err != nil {
//	    return err
//	}
//	for _, t := range tuples {
//	    if err := w.Write(t); err != nil {
//	        return err
//	    }
//	}
//	return w.Close()
//
// Writers do not close the io.Writer they were given.
package encoder
