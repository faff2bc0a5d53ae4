package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/geobin/internal/config/dto"
)

// EnvPrefix is prepended to environment variable overrides, e.g.
// GEOBIN_STORAGE_BACKEND or GEOBIN_SCHEMA_TYPE_NAME.
const EnvPrefix = "GEOBIN"

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand ${VAR} references in string and string-list values.
	for _, key := range l.v.AllKeys() {
		switch value := l.v.Get(key).(type) {
		case string:
			if strings.Contains(value, "${") {
				l.v.Set(key, os.ExpandEnv(value))
			}
		case []any:
			expanded := false
			for i, item := range value {
				if s, ok := item.(string); ok && strings.Contains(s, "${") {
					value[i] = os.ExpandEnv(s)
					expanded = true
				}
			}
			if expanded {
				l.v.Set(key, value)
			}
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "geobin")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Source defaults
	l.v.SetDefault("source.type", "geojson")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.client_id", "geobin")
	l.v.SetDefault("kafka.start_offset", "earliest")
	l.v.SetDefault("kafka.envelope", "geojson")
	l.v.SetDefault("kafka.idle_timeout", "10s")
	l.v.SetDefault("kafka.skipped.enabled", false)
	l.v.SetDefault("kafka.skipped.topic_suffix", "-skipped")

	// Encoding defaults
	l.v.SetDefault("encoding.format", "bin")
	l.v.SetDefault("encoding.axis_order", "LON_LAT")
	l.v.SetDefault("encoding.sort", false)
	l.v.SetDefault("encoding.strict", false)
	l.v.SetDefault("encoding.workers", 8)
	l.v.SetDefault("encoding.queue_size", 256)
	l.v.SetDefault("encoding.max_sort_records", 0)

	// Storage defaults
	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.file.base_path", "./output")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)

	// Retry defaults
	l.v.SetDefault("retry.enabled", true)
	l.v.SetDefault("retry.max_attempts", 5)
	l.v.SetDefault("retry.initial_backoff_ms", 100)
	l.v.SetDefault("retry.max_backoff_ms", 30000)
	l.v.SetDefault("retry.backoff_multiplier", 2.0)

	// Catalog defaults
	l.v.SetDefault("catalog.backend", "memory")
	l.v.SetDefault("catalog.redis.key", "geobin:schemas")

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stderr")
	l.v.SetDefault("observability.metrics.enabled", false)
	l.v.SetDefault("observability.metrics.textfile_path", "geobin.prom")
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	// Source validation
	switch config.Source.Type {
	case "geojson":
		if config.Source.GeoJSON.Path == "" {
			return errors.New("source.geojson.path is required for geojson source")
		}
	case "kafka":
		if err := config.Kafka.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported source type: %s", config.Source.Type)
	}

	// Storage validation
	switch config.Storage.Backend {
	case "s3":
		if err := config.Storage.S3.Validate(); err != nil {
			return err
		}
	case "azure":
		if err := config.Storage.Azure.Validate(); err != nil {
			return err
		}
	case "gcs":
		if err := config.Storage.GCS.Validate(); err != nil {
			return err
		}
	case "file":
		if err := config.Storage.File.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", config.Storage.Backend)
	}

	// Format validation
	switch config.Encoding.Format {
	case "bin", "parquet", "avro":
	default:
		return fmt.Errorf("unsupported encoding format: %s", config.Encoding.Format)
	}

	switch strings.ToUpper(config.Encoding.AxisOrder) {
	case "", "LON_LAT", "LAT_LON":
	default:
		return fmt.Errorf("unsupported axis order: %s", config.Encoding.AxisOrder)
	}

	if config.Encoding.Workers < 0 || config.Encoding.QueueSize < 0 || config.Encoding.MaxSortRecords < 0 {
		return errors.New("encoding workers, queue_size and max_sort_records must not be negative")
	}

	return config.Catalog.Validate()
}
