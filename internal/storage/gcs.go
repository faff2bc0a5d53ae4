package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/jittakal/geobin/internal/encoder"
	"github.com/jittakal/geobin/pkg/storage"
	"github.com/jittakal/geobin/pkg/track"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// GCSWriter implements storage.Writer for Google Cloud Storage.
type GCSWriter struct {
	client         *gcs.Client
	bucket         string
	encoderFactory *encoder.Factory
	namer          *fileNamer
	retry          RetryPolicy
	logger         *zap.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
}

// gcsClientOptions picks the authentication method: explicit JSON, then a
// credentials file, then application default credentials.
func gcsClientOptions(cfg GCSConfig, logger *zap.Logger) []option.ClientOption {
	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("using default GCP credentials")
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", zap.String("file", cfg.CredentialsFile))
	default:
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}
	return clientOpts
}

// NewGCSWriter creates a new Google Cloud Storage writer.
func NewGCSWriter(
	ctx context.Context,
	cfg GCSConfig,
	enc EncodingConfig,
	retry RetryPolicy,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := gcs.NewClient(ctx, gcsClientOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	encoderFactory, err := newFactory(enc)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("GCS writer created",
		zap.String("bucket", cfg.Bucket),
		zap.String("project_id", cfg.ProjectID),
		zap.String("format", string(enc.Format)),
		zap.String("compression", enc.Compression),
	)

	return &GCSWriter{
		client:         client,
		bucket:         cfg.Bucket,
		encoderFactory: encoderFactory,
		namer:          newFileNamer(),
		retry:          retry,
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// contentType returns the object content type for a tuple format.
func contentType(format track.FileFormat) string {
	switch format {
	case track.FormatAvro:
		return "application/avro"
	default:
		return "application/octet-stream"
	}
}

// Write encodes a new file and uploads it to GCS under path.
func (w *GCSWriter) Write(ctx context.Context, typeName string, path string, fill storage.FillFunc) (*storage.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.incError("encoder_create")
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	format := string(enc.Format())
	objectPath := objectKey("gs", path, w.namer.next(enc.FileExtension()))

	spooledFile, err := spool(ctx, "gcs-upload", enc, fill)
	if err != nil {
		w.incError("encode")
		return nil, err
	}
	defer spooledFile.remove()

	err = upload(ctx, w.retry, spooledFile, objectPath, func(ctx context.Context, body io.ReadSeeker) error {
		gcsWriter := w.client.Bucket(w.bucket).Object(objectPath).NewWriter(ctx)
		gcsWriter.ContentType = contentType(enc.Format())
		if _, err := io.Copy(gcsWriter, body); err != nil {
			gcsWriter.Close()
			return err
		}
		return gcsWriter.Close()
	})
	if err != nil {
		w.incError("upload")
		if w.metrics != nil {
			w.metrics.IncFilesWritten(typeName, format, "failure")
		}
		return nil, err
	}

	duration := time.Since(startTime)
	location := fmt.Sprintf("gs://%s/%s", w.bucket, objectPath)

	w.logger.Info("wrote track file to GCS",
		zap.String("type_name", typeName),
		zap.String("bucket", w.bucket),
		zap.String("object", objectPath),
		zap.Int64("tuple_count", spooledFile.stats.TuplesWritten),
		zap.Int64("file_size", spooledFile.size),
		zap.String("format", format),
		zap.Int64("total_duration_ms", duration.Milliseconds()),
	)

	if w.metrics != nil {
		w.metrics.IncFilesWritten(typeName, format, "success")
		w.metrics.ObserveFileSize(typeName, format, float64(spooledFile.size))
		w.metrics.ObserveStorageWriteDuration("gcs", duration.Seconds())
	}

	return &storage.Result{
		Location:  location,
		Stats:     spooledFile.stats,
		SizeBytes: spooledFile.size,
		Duration:  duration,
	}, nil
}

func (w *GCSWriter) incError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors("gcs", operation)
	}
}

// Close closes the GCS writer.
func (w *GCSWriter) Close() error {
	w.logger.Info("closing GCS writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
