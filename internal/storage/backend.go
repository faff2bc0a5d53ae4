package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jittakal/geobin/internal/config/dto"
	"github.com/jittakal/geobin/pkg/storage"
)

// NewWriter creates the writer and router for the configured backend.
func NewWriter(
	ctx context.Context,
	cfg dto.StorageConfig,
	retryCfg dto.RetryConfig,
	enc EncodingConfig,
	logger *zap.Logger,
	metrics MetricsCollector,
) (storage.Writer, *DefaultRouter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := RetryPolicyFromConfig(retryCfg, logger)

	switch cfg.Backend {
	case "s3":
		w, err := NewS3Writer(ctx, S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			SSEEnabled:   cfg.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.S3.SSEKMSKeyID,
		}, enc, retry, logger, metrics)
		if err != nil {
			return nil, nil, err
		}
		return w, NewRouterForBackend("s3", cfg.S3.Bucket, cfg.S3.BasePath), nil

	case "gcs":
		w, err := NewGCSWriter(ctx, GCSConfig{
			Bucket:               cfg.GCS.Bucket,
			ProjectID:            cfg.GCS.ProjectID,
			CredentialsFile:      cfg.GCS.CredentialsFile,
			CredentialsJSON:      cfg.GCS.CredentialsJSON,
			UseDefaultCredential: cfg.GCS.UseDefaultCredential,
		}, enc, retry, logger, metrics)
		if err != nil {
			return nil, nil, err
		}
		return w, NewRouterForBackend("gcs", cfg.GCS.Bucket, cfg.GCS.BasePath), nil

	case "azure":
		w, err := NewAzureWriter(AzureConfig{
			AccountName:   cfg.Azure.AccountName,
			AccountKey:    cfg.Azure.AccountKey,
			ContainerName: cfg.Azure.Container,
			Endpoint:      cfg.Azure.Endpoint,
		}, enc, retry, logger, metrics)
		if err != nil {
			return nil, nil, err
		}
		return w, NewRouterForBackend("azure", cfg.Azure.Container, cfg.Azure.BasePath), nil

	case "file", "":
		w, err := NewFileWriter(FileConfig{BasePath: cfg.File.BasePath}, enc, logger, metrics)
		if err != nil {
			return nil, nil, err
		}
		return w, NewRouterForBackend("file", "", ""), nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
