package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/feature"
)

// Ensure implementation satisfies interface at compile time.
var _ feature.SkipPublisher = (*SkipPublisher)(nil)

// SkippedRecord is the message published for a record the encoder dropped.
type SkippedRecord struct {
	Feature     json.RawMessage `json:"feature"`
	TypeName    string          `json:"type_name"`
	SourceTopic string          `json:"source_topic,omitempty"`
	Reason      string          `json:"reason"`
	SkippedAt   time.Time       `json:"skipped_at"`
	ProcessorID string          `json:"processor_id"`
}

// SkipConfig contains skip publisher configuration.
type SkipConfig struct {
	// Topic is the source topic; records go to Topic+TopicSuffix.
	Topic       string
	TopicSuffix string
	TypeName    string
	// Attributes lists the properties copied into the published feature.
	Attributes []string
}

// SkipPublisher publishes skipped records to a Kafka topic through an
// idempotent sync producer.
type SkipPublisher struct {
	producer    sarama.SyncProducer
	config      SkipConfig
	topic       string
	logger      *zap.Logger
	metrics     MetricsCollector
	processorID string
	mu          sync.RWMutex
	closed      bool
}

// NewSkipPublisher creates a new skip publisher.
func NewSkipPublisher(
	clientCfg ClientConfig,
	cfg SkipConfig,
	processorID string,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*SkipPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	saramaConfig, err := newSaramaConfig(clientCfg, logger)
	if err != nil {
		return nil, err
	}
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(clientCfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	return newSkipPublisher(producer, cfg, processorID, logger, metrics), nil
}

func newSkipPublisher(producer sarama.SyncProducer, cfg SkipConfig, processorID string, logger *zap.Logger, metrics MetricsCollector) *SkipPublisher {
	p := &SkipPublisher{
		producer:    producer,
		config:      cfg,
		topic:       cfg.Topic + cfg.TopicSuffix,
		logger:      logger,
		metrics:     metrics,
		processorID: processorID,
	}
	logger.Info("skip publisher created",
		zap.String("topic", p.topic),
		zap.String("processor_id", processorID),
	)
	return p
}

// Topic returns the topic skipped records are published to.
func (p *SkipPublisher) Topic() string {
	return p.topic
}

// Publish sends f with the reason it was skipped.
func (p *SkipPublisher) Publish(ctx context.Context, f feature.Feature, reason string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return apperrors.ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	featureData, err := feature.ToGeoJSON(f, p.config.Attributes).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal feature: %w", err)
	}

	payload, err := json.Marshal(SkippedRecord{
		Feature:     featureData,
		TypeName:    p.config.TypeName,
		SourceTopic: p.config.Topic,
		Reason:      reason,
		SkippedAt:   time.Now().UTC(),
		ProcessorID: p.processorID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal skipped record: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(f.ID()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("skip_reason"), Value: []byte(reason)},
			{Key: []byte("type_name"), Value: []byte(p.config.TypeName)},
			{Key: []byte("processor_id"), Value: []byte(p.processorID)},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		if p.metrics != nil {
			p.metrics.IncSkippedPublished(p.topic, "failure")
		}
		p.logger.Error("failed to publish skipped record",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("feature_id", f.ID()),
		)
		return fmt.Errorf("failed to send skipped record: %w", err)
	}

	if p.metrics != nil {
		p.metrics.IncSkippedPublished(p.topic, "success")
	}
	p.logger.Debug("published skipped record",
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("feature_id", f.ID()),
		zap.String("reason", reason),
	)
	return nil
}

// Close closes the skip publisher.
func (p *SkipPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", zap.Error(err))
			return err
		}
	}
	p.logger.Info("skip publisher closed")
	return nil
}
