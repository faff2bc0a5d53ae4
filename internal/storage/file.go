package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/geobin/internal/encoder"
	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*FileWriter)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements storage.Writer for local filesystem storage.
// Files are written under the base path in the directory layout produced
// by the router. A failed fill removes the partial file.
type FileWriter struct {
	basePath       string
	encoderFactory *encoder.Factory
	namer          *fileNamer
	logger         *zap.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
	closed         bool
}

// NewFileWriter creates a new filesystem storage writer.
func NewFileWriter(
	config FileConfig,
	enc EncodingConfig,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*FileWriter, error) {
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	encoderFactory, err := newFactory(enc)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("filesystem writer created",
		zap.String("base_path", config.BasePath),
		zap.String("format", string(enc.Format)),
		zap.String("compression", enc.Compression),
	)

	return &FileWriter{
		basePath:       config.BasePath,
		encoderFactory: encoderFactory,
		namer:          newFileNamer(),
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// Write creates a new file in path and fills it.
func (w *FileWriter) Write(ctx context.Context, typeName string, path string, fill storage.FillFunc) (*storage.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, apperrors.ErrWriterClosed
	}

	startTime := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.incError("encoder_create")
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	format := string(enc.Format())

	dir := filepath.Join(w.basePath, strings.TrimPrefix(path, "file://"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.incError("mkdir")
		return nil, &apperrors.StorageError{Operation: "mkdir", Path: dir, Err: err}
	}
	fullPath := filepath.Join(dir, w.namer.next(enc.FileExtension()))

	f, err := os.Create(fullPath)
	if err != nil {
		w.incError("create")
		return nil, &apperrors.StorageError{Operation: "create", Path: fullPath, Err: err}
	}

	stats, fillErr := fill(ctx, enc, f)
	closeErr := f.Close()
	if fillErr == nil && closeErr != nil {
		fillErr = &apperrors.StorageError{Operation: "write", Path: fullPath, Err: closeErr}
	}
	if fillErr != nil {
		_ = os.Remove(fullPath)
		w.incError("encode")
		if w.metrics != nil {
			w.metrics.IncFilesWritten(typeName, format, "failure")
		}
		return nil, fillErr
	}

	var size int64
	if info, err := os.Stat(fullPath); err == nil {
		size = info.Size()
	}
	duration := time.Since(startTime)

	w.logger.Info("wrote track file",
		zap.String("type_name", typeName),
		zap.String("path", fullPath),
		zap.Int64("tuple_count", stats.TuplesWritten),
		zap.Int64("file_size", size),
		zap.String("format", format),
		zap.Int64("total_duration_ms", duration.Milliseconds()),
	)

	if w.metrics != nil {
		w.metrics.IncFilesWritten(typeName, format, "success")
		w.metrics.ObserveFileSize(typeName, format, float64(size))
		w.metrics.ObserveStorageWriteDuration("file", duration.Seconds())
	}

	return &storage.Result{
		Location:  fullPath,
		Stats:     stats,
		SizeBytes: size,
		Duration:  duration,
	}, nil
}

func (w *FileWriter) incError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors("file", operation)
	}
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.logger.Info("closing filesystem writer")
	return nil
}
