package kafka

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/feature"
)

// Ensure implementation satisfies interface at compile time.
var _ feature.Source = (*Source)(nil)

// MetricsCollector defines metrics operations for the Kafka source and
// skip publisher.
type MetricsCollector interface {
	IncMessagesConsumed(topic string, partition int32)
	IncSkippedPublished(topic string, status string)
}

// SourceConfig contains Kafka source configuration.
type SourceConfig struct {
	ClientConfig
	Topic string
	// StartOffset is "earliest" or "latest".
	StartOffset string
	Envelope    Envelope
	// IdleTimeout ends a partition's snapshot when nothing below the
	// high-water mark arrives for this long. Trailing transaction markers
	// and aborted records occupy offsets that are never delivered. Zero
	// uses DefaultIdleTimeout.
	IdleTimeout time.Duration
}

// DefaultIdleTimeout is the partition idle bound used when none is set.
const DefaultIdleTimeout = 10 * time.Second

// partitionReader is the part of sarama.PartitionConsumer the source uses.
type partitionReader interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

// broker is the cluster access the source needs.
type broker interface {
	Partitions(topic string) ([]int32, error)
	// OffsetRange returns the oldest available offset and the high-water
	// mark (next offset to be written).
	OffsetRange(topic string, partition int32) (oldest, newest int64, err error)
	ConsumePartition(topic string, partition int32, offset int64) (partitionReader, error)
	Close() error
}

// saramaBroker implements broker with a sarama client and consumer.
type saramaBroker struct {
	client   sarama.Client
	consumer sarama.Consumer
}

func (b *saramaBroker) Partitions(topic string) ([]int32, error) {
	return b.client.Partitions(topic)
}

func (b *saramaBroker) OffsetRange(topic string, partition int32) (int64, int64, error) {
	oldest, err := b.client.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, err
	}
	newest, err := b.client.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, err
	}
	return oldest, newest, nil
}

func (b *saramaBroker) ConsumePartition(topic string, partition int32, offset int64) (partitionReader, error) {
	return b.consumer.ConsumePartition(topic, partition, offset)
}

func (b *saramaBroker) Close() error {
	if err := b.consumer.Close(); err != nil {
		b.client.Close()
		return err
	}
	return b.client.Close()
}

// Source reads a snapshot of a topic: every partition from the start
// offset up to the high-water mark captured when the source was opened.
// Messages that cannot be decoded are logged and dropped.
type Source struct {
	broker  broker
	topic   string
	decode  Decoder
	logger  *zap.Logger
	metrics MetricsCollector

	messages chan *sarama.ConsumerMessage
	errs     chan error
	done     chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewSource connects to the cluster and opens a snapshot of cfg.Topic.
func NewSource(cfg SourceConfig, logger *zap.Logger, metrics MetricsCollector) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decode, err := NewDecoder(cfg.Envelope)
	if err != nil {
		return nil, err
	}

	saramaConfig, err := newSaramaConfig(cfg.ClientConfig, logger)
	if err != nil {
		return nil, err
	}
	saramaConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	logger.Info("kafka source created",
		zap.Strings("bootstrap_servers", cfg.BootstrapServers),
		zap.String("topic", cfg.Topic),
		zap.String("start_offset", cfg.StartOffset),
		zap.String("envelope", string(cfg.Envelope)),
	)

	b := &saramaBroker{client: client, consumer: consumer}
	s, err := openSource(b, cfg.Topic, cfg.StartOffset, cfg.IdleTimeout, decode, logger, metrics)
	if err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}

// openSource captures the snapshot bounds and starts one reader per
// non-empty partition.
func openSource(b broker, topic, startOffset string, idle time.Duration, decode Decoder, logger *zap.Logger, metrics MetricsCollector) (*Source, error) {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	partitions, err := b.Partitions(topic)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions of %s: %w", topic, err)
	}

	s := &Source{
		broker:   b,
		topic:    topic,
		decode:   decode,
		logger:   logger,
		metrics:  metrics,
		messages: make(chan *sarama.ConsumerMessage, 256),
		errs:     make(chan error, len(partitions)),
		done:     make(chan struct{}),
	}

	type bounds struct {
		partition int32
		start     int64
		end       int64
	}
	var open []bounds
	for _, p := range partitions {
		oldest, newest, err := b.OffsetRange(topic, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read offsets of %s/%d: %w", topic, p, err)
		}
		start := oldest
		if startOffset == "latest" {
			start = newest
		}
		if start >= newest {
			continue
		}
		open = append(open, bounds{partition: p, start: start, end: newest})
	}

	readers := make([]partitionReader, 0, len(open))
	for _, o := range open {
		pc, err := b.ConsumePartition(topic, o.partition, o.start)
		if err != nil {
			for _, r := range readers {
				r.Close()
			}
			return nil, fmt.Errorf("failed to consume %s/%d: %w", topic, o.partition, err)
		}
		readers = append(readers, pc)
		logger.Debug("reading partition snapshot",
			zap.String("topic", topic),
			zap.Int32("partition", o.partition),
			zap.Int64("start_offset", o.start),
			zap.Int64("high_water_mark", o.end),
		)
	}

	for i, r := range readers {
		s.wg.Add(1)
		go s.readPartition(r, open[i].partition, open[i].end, idle)
	}
	go func() {
		s.wg.Wait()
		close(s.messages)
	}()

	return s, nil
}

// readPartition forwards messages below end and closes its reader. It
// stops at the last offset before end, or once the partition has been idle
// for the given duration.
func (s *Source) readPartition(pc partitionReader, partition int32, end int64, idle time.Duration) {
	defer s.wg.Done()
	defer pc.Close()

	timer := time.NewTimer(idle)
	defer timer.Stop()

	last := int64(-1)
	errs := pc.Errors()
	for {
		select {
		case msg, ok := <-pc.Messages():
			if !ok {
				s.fail(apperrors.ErrConnectionLost)
				return
			}
			if msg.Offset >= end {
				return
			}
			select {
			case s.messages <- msg:
			case <-s.done:
				return
			}
			if msg.Offset >= end-1 {
				return
			}
			last = msg.Offset
			timer.Reset(idle)
		case <-timer.C:
			s.logger.Debug("partition idle below high-water mark, ending snapshot",
				zap.String("topic", s.topic),
				zap.Int32("partition", partition),
				zap.Int64("last_offset", last),
				zap.Int64("high_water_mark", end),
			)
			return
		case cerr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.fail(fmt.Errorf("%w: %v", apperrors.ErrConnectionLost, cerr))
			return
		case <-s.done:
			return
		}
	}
}

func (s *Source) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Next returns the next decodable feature, or io.EOF once every partition
// reached its high-water mark.
func (s *Source) Next(ctx context.Context) (feature.Feature, error) {
	for {
		select {
		case err := <-s.errs:
			return nil, err
		default:
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-s.errs:
			return nil, err
		case msg, ok := <-s.messages:
			if !ok {
				select {
				case err := <-s.errs:
					return nil, err
				default:
				}
				if s.isClosed() {
					return nil, apperrors.ErrSourceClosed
				}
				return nil, io.EOF
			}
			if s.metrics != nil {
				s.metrics.IncMessagesConsumed(msg.Topic, msg.Partition)
			}
			f, err := s.decode(msg.Value)
			if err != nil {
				s.mu.Lock()
				s.dropped++
				s.mu.Unlock()
				s.logger.Warn("dropping undecodable message",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
				continue
			}
			return f, nil
		}
	}
}

// Dropped returns the number of messages that could not be decoded.
func (s *Source) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Source) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the partition readers and closes the cluster connection.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	s.logger.Info("kafka source closed",
		zap.String("topic", s.topic),
		zap.Int64("dropped", s.Dropped()),
	)
	return s.broker.Close()
}
