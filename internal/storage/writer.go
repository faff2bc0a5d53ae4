package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jittakal/geobin/internal/encoder"
	apperrors "github.com/jittakal/geobin/internal/errors"
	pkgencoder "github.com/jittakal/geobin/pkg/encoder"
	"github.com/jittakal/geobin/pkg/storage"
	"github.com/jittakal/geobin/pkg/track"
)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncFilesWritten(typeName string, format string, status string)
	ObserveFileSize(typeName string, format string, size float64)
	ObserveStorageWriteDuration(backend string, duration float64)
	IncStorageErrors(backend string, operation string)
}

// EncodingConfig selects the file encoding used by every writer.
type EncodingConfig struct {
	Format      track.FileFormat
	Compression string
	Variant     encoder.BinVariant
}

// newFactory checks that cfg yields a usable encoder.
func newFactory(cfg EncodingConfig) (*encoder.Factory, error) {
	factory := encoder.NewFactory(cfg.Format, cfg.Compression, cfg.Variant)
	if _, err := factory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	return factory, nil
}

// fileNamer generates tracks_YYYYMMDD_HHMMSS_NNN<ext> names. NNN counts
// files created within the same second, starting at 001.
type fileNamer struct {
	mu            sync.Mutex
	now           func() time.Time
	lastTimestamp string
	sequence      int
}

func newFileNamer() *fileNamer {
	return &fileNamer{now: time.Now}
}

func (n *fileNamer) next(ext string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	timestamp := n.now().UTC().Format("20060102_150405")
	if timestamp == n.lastTimestamp {
		n.sequence++
	} else {
		n.sequence = 1
		n.lastTimestamp = timestamp
	}
	return fmt.Sprintf("tracks_%s_%03d%s", timestamp, n.sequence, ext)
}

// objectKey strips scheme://bucket/ from path and joins name, returning a
// key without a leading slash. Paths without the scheme are used as is.
func objectKey(scheme, path, name string) string {
	key := path
	if strings.HasPrefix(path, scheme+"://") {
		rest := strings.TrimPrefix(path, scheme+"://")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 2 {
			key = parts[1]
		} else {
			key = ""
		}
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return strings.TrimPrefix(key+name, "/")
}

// spooled is an encoded file waiting in a temporary location for upload.
type spooled struct {
	path  string
	stats track.Stats
	size  int64
}

func (s *spooled) open() (*os.File, error) {
	return os.Open(s.path)
}

func (s *spooled) remove() {
	_ = os.Remove(s.path)
}

// spool runs fill into a temporary file. The caller removes it.
func spool(ctx context.Context, prefix string, enc pkgencoder.Encoder, fill storage.FillFunc) (*spooled, error) {
	tmp, err := os.CreateTemp("", prefix+"-*"+enc.FileExtension())
	if err != nil {
		return nil, &apperrors.StorageError{Operation: "create", Path: os.TempDir(), Err: err}
	}

	stats, fillErr := fill(ctx, enc, tmp)
	closeErr := tmp.Close()
	if fillErr != nil {
		_ = os.Remove(tmp.Name())
		return nil, fillErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp.Name())
		return nil, &apperrors.StorageError{Operation: "write", Path: tmp.Name(), Err: closeErr}
	}

	info, err := os.Stat(tmp.Name())
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, &apperrors.StorageError{Operation: "stat", Path: tmp.Name(), Err: err}
	}
	return &spooled{path: tmp.Name(), stats: stats, size: info.Size()}, nil
}

// uploadFunc sends an open spooled file to its destination.
type uploadFunc func(ctx context.Context, body io.ReadSeeker) error

// upload sends s with retries, reopening the file for each attempt.
func upload(ctx context.Context, retry RetryPolicy, s *spooled, key string, send uploadFunc) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		f, err := s.open()
		if err != nil {
			return &apperrors.StorageError{Operation: "open", Path: s.path, Err: err}
		}
		defer f.Close()
		if err := send(ctx, f); err != nil {
			return &apperrors.StorageError{Operation: "upload", Path: key, Err: err}
		}
		return nil
	})
}
