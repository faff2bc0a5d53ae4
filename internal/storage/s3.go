package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/jittakal/geobin/internal/encoder"
	"github.com/jittakal/geobin/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*S3Writer)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// S3Writer implements storage.Writer for AWS S3 storage.
// Files are encoded to a temporary file and sent with the multipart
// uploader; failed uploads are retried by the retry policy.
type S3Writer struct {
	client         *s3.Client
	uploader       *manager.Uploader
	bucket         string
	sseEnabled     bool
	sseKMSKeyID    string
	encoderFactory *encoder.Factory
	namer          *fileNamer
	retry          RetryPolicy
	logger         *zap.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
}

// NewS3Writer creates a new S3 storage writer.
func NewS3Writer(
	ctx context.Context,
	cfg S3Config,
	enc EncodingConfig,
	retry RetryPolicy,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 5
	})

	encoderFactory, err := newFactory(enc)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("S3 writer created",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("format", string(enc.Format)),
		zap.String("compression", enc.Compression),
		zap.Bool("sse_enabled", cfg.SSEEnabled),
	)

	return &S3Writer{
		client:         s3Client,
		uploader:       uploader,
		bucket:         cfg.Bucket,
		sseEnabled:     cfg.SSEEnabled,
		sseKMSKeyID:    cfg.SSEKMSKeyID,
		encoderFactory: encoderFactory,
		namer:          newFileNamer(),
		retry:          retry,
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// putInput builds the upload request for key, applying server-side
// encryption when enabled.
func (w *S3Writer) putInput(key string, body io.Reader) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if w.sseEnabled {
		if w.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(w.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}
	return input
}

// Write encodes a new file and uploads it to S3 under path.
func (w *S3Writer) Write(ctx context.Context, typeName string, path string, fill storage.FillFunc) (*storage.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.incError("encoder_create")
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	format := string(enc.Format())
	key := objectKey("s3", path, w.namer.next(enc.FileExtension()))

	spooledFile, err := spool(ctx, "s3-upload", enc, fill)
	if err != nil {
		w.incError("encode")
		return nil, err
	}
	defer spooledFile.remove()

	var location string
	err = upload(ctx, w.retry, spooledFile, key, func(ctx context.Context, body io.ReadSeeker) error {
		out, err := w.uploader.Upload(ctx, w.putInput(key, body))
		if err != nil {
			return err
		}
		location = out.Location
		return nil
	})
	if err != nil {
		w.incError("upload")
		if w.metrics != nil {
			w.metrics.IncFilesWritten(typeName, format, "failure")
		}
		return nil, err
	}
	if location == "" {
		location = fmt.Sprintf("s3://%s/%s", w.bucket, key)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote track file to S3",
		zap.String("type_name", typeName),
		zap.String("bucket", w.bucket),
		zap.String("key", key),
		zap.Int64("tuple_count", spooledFile.stats.TuplesWritten),
		zap.Int64("file_size", spooledFile.size),
		zap.String("format", format),
		zap.String("location", location),
		zap.Int64("total_duration_ms", duration.Milliseconds()),
	)

	if w.metrics != nil {
		w.metrics.IncFilesWritten(typeName, format, "success")
		w.metrics.ObserveFileSize(typeName, format, float64(spooledFile.size))
		w.metrics.ObserveStorageWriteDuration("s3", duration.Seconds())
	}

	return &storage.Result{
		Location:  location,
		Stats:     spooledFile.stats,
		SizeBytes: spooledFile.size,
		Duration:  duration,
	}, nil
}

func (w *S3Writer) incError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors("s3", operation)
	}
}

// Close closes the S3 writer.
func (w *S3Writer) Close() error {
	w.logger.Info("closing S3 writer")
	return nil
}
