// Package buffer provides thread-safe buffering for point tuples.
//
// TupleBuffer is used by the encoding pipeline when output must be ordered
// by time. Workers finish records in any order, so each tuple is added with
// the sequence number of the record it came from; Drain sorts by timestamp
// and falls back to that sequence, making the order independent of worker
// scheduling:
//
//	buf := buffer.New(maxRecords)
//	for r := range results {
//	    if err := buf.Add(r.seq, r.tuple); err != nil {
//	        return err // wraps errors.ErrBufferFull
//	    }
//	}
//	for _, t := range buf.Drain() {
//	    w.Write(t)
//	}
package buffer
