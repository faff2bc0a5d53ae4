package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	RecordsRead    *prometheus.CounterVec
	RecordsSkipped *prometheus.CounterVec
	TuplesEncoded  *prometheus.CounterVec
	EncodeDuration *prometheus.HistogramVec

	// Source metrics
	MessagesConsumed *prometheus.CounterVec
	SkippedPublished *prometheus.CounterVec

	// Storage metrics
	FilesWritten         *prometheus.CounterVec
	StorageWriteDuration *prometheus.HistogramVec
	FileSize             *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec

	// Catalog metrics
	CatalogOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RecordsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geobin_records_read_total",
				Help: "Total number of feature records read",
			},
			[]string{"type_name"},
		),
		RecordsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geobin_records_skipped_total",
				Help: "Total number of feature records skipped as malformed",
			},
			[]string{"type_name"},
		),
		TuplesEncoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geobin_tuples_encoded_total",
				Help: "Total number of point tuples written",
			},
			[]string{"type_name", "format"},
		),
		EncodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geobin_encode_duration_seconds",
				Help:    "Duration of collection encode runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type_name", "format"},
		),

		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geobin_kafka_messages_consumed_total",
				Help: "Total number of messages read from Kafka",
			},
			[]string{"topic", "partition"},
		),
		SkippedPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geobin_skipped_published_total",
				Help: "Total number of skipped records published",
			},
			[]string{"topic", "status"},
		),

		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geobin_files_written_total",
				Help: "Total number of files written to storage",
			},
			[]string{"type_name", "format", "status"},
		),
		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geobin_storage_write_duration_seconds",
				Help:    "Duration of complete storage writes including encoding",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		FileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geobin_file_size_bytes",
				Help:    "Size of files written to storage",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
			},
			[]string{"type_name", "format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geobin_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),

		CatalogOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geobin_catalog_operations_total",
				Help: "Total number of schema catalog operations",
			},
			[]string{"backend", "operation", "status"},
		),
	}
}

// IncRecordsRead increments records read counter.
func (m *Metrics) IncRecordsRead(typeName string) {
	m.RecordsRead.WithLabelValues(typeName).Inc()
}

// IncRecordsSkipped increments skipped records counter.
func (m *Metrics) IncRecordsSkipped(typeName string) {
	m.RecordsSkipped.WithLabelValues(typeName).Inc()
}

// AddTuplesEncoded adds n to the tuples encoded counter.
func (m *Metrics) AddTuplesEncoded(typeName string, format string, n int) {
	m.TuplesEncoded.WithLabelValues(typeName, format).Add(float64(n))
}

// ObserveEncodeDuration observes the duration of an encode run.
func (m *Metrics) ObserveEncodeDuration(typeName string, format string, seconds float64) {
	m.EncodeDuration.WithLabelValues(typeName, format).Observe(seconds)
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncSkippedPublished increments the skipped-record publish counter.
func (m *Metrics) IncSkippedPublished(topic string, status string) {
	m.SkippedPublished.WithLabelValues(topic, status).Inc()
}

// IncFilesWritten increments files written counter.
func (m *Metrics) IncFilesWritten(typeName string, format string, status string) {
	m.FilesWritten.WithLabelValues(typeName, format, status).Inc()
}

// ObserveFileSize observes file size.
func (m *Metrics) ObserveFileSize(typeName string, format string, size float64) {
	m.FileSize.WithLabelValues(typeName, format).Observe(size)
}

// ObserveStorageWriteDuration observes storage write duration.
func (m *Metrics) ObserveStorageWriteDuration(backend string, duration float64) {
	m.StorageWriteDuration.WithLabelValues(backend).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncCatalogOperations increments the catalog operation counter.
func (m *Metrics) IncCatalogOperations(backend string, operation string, status string) {
	m.CatalogOperations.WithLabelValues(backend, operation, status).Inc()
}

// WriteTextfile writes the current metric values in the Prometheus text
// format, for collection by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
