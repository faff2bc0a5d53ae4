// Package storage defines interfaces for writing encoded track files.
//
// This package provides abstractions for writing tuple files to various
// storage backends (local filesystem, S3, Google Cloud Storage, Azure Blob).
package storage

import (
	"context"
	"io"
	"time"

	"github.com/jittakal/geobin/pkg/encoder"
	"github.com/jittakal/geobin/pkg/track"
)

// FillFunc streams one file's worth of tuples through enc into w. It is
// called exactly once per Write.
type FillFunc func(ctx context.Context, enc encoder.Encoder, w io.Writer) (track.Stats, error)

// Result describes a file that was written.
type Result struct {
	// Location is the full URI or filesystem path of the file.
	Location  string
	Stats     track.Stats
	SizeBytes int64
	Duration  time.Duration
}

// Writer writes encoded track files to storage.
type Writer interface {
	// Write creates a new file under path and fills it. typeName labels
	// metrics and logs.
	Write(ctx context.Context, typeName string, path string, fill FillFunc) (*Result, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage paths for a feature type.
type Router interface {
	// Route returns the directory for files of typeName produced at t.
	Route(typeName string, t time.Time) string
}
