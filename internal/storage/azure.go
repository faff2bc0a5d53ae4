package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"

	"github.com/jittakal/geobin/internal/encoder"
	"github.com/jittakal/geobin/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// AzureWriter implements storage.Writer for Azure Blob Storage.
// It authenticates with an access key, or anonymously when the endpoint
// carries a SAS token and no key is configured.
type AzureWriter struct {
	client         *azblob.Client
	containerName  string
	encoderFactory *encoder.Factory
	namer          *fileNamer
	retry          RetryPolicy
	logger         *zap.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
}

// azureConnectionString builds a shared-key connection string.
func azureConnectionString(cfg AzureConfig) string {
	if cfg.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		cfg.AccountName, cfg.AccountKey)
}

// azureServiceURL returns the blob service URL for anonymous access.
func azureServiceURL(cfg AzureConfig) string {
	if cfg.Endpoint != "" {
		return cfg.Endpoint
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
}

// NewAzureWriter creates a new Azure Blob storage writer.
func NewAzureWriter(
	cfg AzureConfig,
	enc EncodingConfig,
	retry RetryPolicy,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		client *azblob.Client
		err    error
	)
	if cfg.AccountKey != "" {
		client, err = azblob.NewClientFromConnectionString(azureConnectionString(cfg), nil)
	} else {
		logger.Info("no Azure account key provided, using anonymous access")
		client, err = azblob.NewClientWithNoCredential(azureServiceURL(cfg), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	encoderFactory, err := newFactory(enc)
	if err != nil {
		return nil, err
	}

	logger.Info("Azure writer created",
		zap.String("container", cfg.ContainerName),
		zap.String("account", cfg.AccountName),
		zap.String("format", string(enc.Format)),
		zap.String("compression", enc.Compression),
	)

	return &AzureWriter{
		client:         client,
		containerName:  cfg.ContainerName,
		encoderFactory: encoderFactory,
		namer:          newFileNamer(),
		retry:          retry,
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// Write encodes a new file and uploads it as a block blob under path.
func (w *AzureWriter) Write(ctx context.Context, typeName string, path string, fill storage.FillFunc) (*storage.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.incError("encoder_create")
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	format := string(enc.Format())
	blobPath := objectKey("wasbs", path, w.namer.next(enc.FileExtension()))

	spooledFile, err := spool(ctx, "azure-upload", enc, fill)
	if err != nil {
		w.incError("encode")
		return nil, err
	}
	defer spooledFile.remove()

	err = upload(ctx, w.retry, spooledFile, blobPath, func(ctx context.Context, body io.ReadSeeker) error {
		_, err := w.client.UploadStream(ctx, w.containerName, blobPath, body, nil)
		return err
	})
	if err != nil {
		w.incError("upload")
		if w.metrics != nil {
			w.metrics.IncFilesWritten(typeName, format, "failure")
		}
		return nil, err
	}

	duration := time.Since(startTime)
	location := strings.TrimSuffix(w.client.URL(), "/") + "/" + w.containerName + "/" + blobPath

	w.logger.Info("wrote track file to Azure Blob",
		zap.String("type_name", typeName),
		zap.String("container", w.containerName),
		zap.String("blob", blobPath),
		zap.Int64("tuple_count", spooledFile.stats.TuplesWritten),
		zap.Int64("file_size", spooledFile.size),
		zap.String("format", format),
		zap.Int64("total_duration_ms", duration.Milliseconds()),
	)

	if w.metrics != nil {
		w.metrics.IncFilesWritten(typeName, format, "success")
		w.metrics.ObserveFileSize(typeName, format, float64(spooledFile.size))
		w.metrics.ObserveStorageWriteDuration("azure", duration.Seconds())
	}

	return &storage.Result{
		Location:  location,
		Stats:     spooledFile.stats,
		SizeBytes: spooledFile.size,
		Duration:  duration,
	}, nil
}

func (w *AzureWriter) incError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors("azure", operation)
	}
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.logger.Info("Azure writer closed")
	return nil
}
