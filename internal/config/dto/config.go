package dto

import (
	"fmt"
	"strings"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Schema        FeatureTypeConfig   `mapstructure:"schema"`
	Source        SourceConfig        `mapstructure:"source"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Encoding      EncodingConfig      `mapstructure:"encoding"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// FeatureTypeConfig describes a schema either as a spec string or as an
// ordered field list. Keys are hyphenated to match stored schema configs.
type FeatureTypeConfig struct {
	TypeName   string           `mapstructure:"type-name"`
	Spec       string           `mapstructure:"spec"`
	Fields     []FieldConfig    `mapstructure:"fields"`
	Attributes []FieldConfig    `mapstructure:"attributes"`
	DtgField   string           `mapstructure:"dtg-field"`
	UserData   []UserDataConfig `mapstructure:"user-data"`
}

// UserDataConfig is one schema-level key/value pair. It is a list entry
// rather than a map key because keys such as geomesa.index.dtg contain the
// config key delimiter.
type UserDataConfig struct {
	Key   string `mapstructure:"key"`
	Value string `mapstructure:"value"`
}

// FieldConfig describes one attribute of a schema.
type FieldConfig struct {
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	Index       string `mapstructure:"index"`
	IndexValue  bool   `mapstructure:"index-value"`
	Cardinality string `mapstructure:"cardinality"`
	SRID        *int   `mapstructure:"srid"`
	Default     bool   `mapstructure:"default"`
}

// FieldList returns whichever of fields or attributes is set.
func (c *FeatureTypeConfig) FieldList() []FieldConfig {
	if len(c.Fields) > 0 {
		return c.Fields
	}
	return c.Attributes
}

// Validate validates a feature type configuration.
func (c *FeatureTypeConfig) Validate() error {
	if c.TypeName == "" {
		return fmt.Errorf("schema type-name is required")
	}
	if len(c.Fields) > 0 && len(c.Attributes) > 0 {
		return fmt.Errorf("schema must set only one of fields or attributes")
	}
	if c.Spec != "" && len(c.FieldList()) > 0 {
		return fmt.Errorf("schema must set only one of spec or fields")
	}
	if c.Spec == "" && len(c.FieldList()) == 0 {
		return fmt.Errorf("schema requires a spec or fields")
	}
	for i, f := range c.FieldList() {
		if f.Name == "" {
			return fmt.Errorf("schema field %d: name is required", i)
		}
		if f.Type == "" {
			return fmt.Errorf("schema field %q: type is required", f.Name)
		}
	}
	for i, ud := range c.UserData {
		if ud.Key == "" {
			return fmt.Errorf("schema user-data %d: key is required", i)
		}
	}
	return nil
}

// SourceConfig selects where records are read from.
type SourceConfig struct {
	Type    string              `mapstructure:"type"`
	GeoJSON GeoJSONSourceConfig `mapstructure:"geojson"`
}

// GeoJSONSourceConfig contains GeoJSON file source settings
type GeoJSONSourceConfig struct {
	Path string `mapstructure:"path"`
	// Delimited reads one feature per line instead of a FeatureCollection.
	Delimited bool `mapstructure:"delimited"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string          `mapstructure:"bootstrap_servers"`
	SecurityProtocol string            `mapstructure:"security_protocol"`
	SASLMechanism    string            `mapstructure:"sasl_mechanism"`
	SASLUsername     string            `mapstructure:"sasl_username"`
	SASLPassword     string            `mapstructure:"sasl_password"`
	AWSRegion        string            `mapstructure:"aws_region"`
	ClientID         string            `mapstructure:"client_id"`
	Topic            string            `mapstructure:"topic"`
	StartOffset      string            `mapstructure:"start_offset"`
	Envelope         string            `mapstructure:"envelope"`
	IdleTimeout      time.Duration     `mapstructure:"idle_timeout"`
	Skipped          SkipPublishConfig `mapstructure:"skipped"`
}

// SkipPublishConfig controls publishing of skipped records.
type SkipPublishConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
}

// Validate validates Kafka configuration.
func (c *KafkaConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	switch c.StartOffset {
	case "", "earliest", "latest":
	default:
		return fmt.Errorf("unsupported kafka start offset: %s", c.StartOffset)
	}
	switch c.Envelope {
	case "", "geojson", "cloudevents":
	default:
		return fmt.Errorf("unsupported kafka envelope: %s", c.Envelope)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("kafka idle timeout must not be negative")
	}
	return nil
}

// EncodingConfig contains field roles and pipeline settings
type EncodingConfig struct {
	Format         string `mapstructure:"format"`
	Compression    string `mapstructure:"compression"`
	DtgField       string `mapstructure:"dtg_field"`
	TrackIDField   string `mapstructure:"track_id_field"`
	LabelField     string `mapstructure:"label_field"`
	LatField       string `mapstructure:"lat_field"`
	LonField       string `mapstructure:"lon_field"`
	AxisOrder      string `mapstructure:"axis_order"`
	Sort           bool   `mapstructure:"sort"`
	Strict         bool   `mapstructure:"strict"`
	Workers        int    `mapstructure:"workers"`
	QueueSize      int    `mapstructure:"queue_size"`
	MaxSortRecords int    `mapstructure:"max_sort_records"`
}

// StorageConfig contains storage backend configuration
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	S3      S3Config    `mapstructure:"s3"`
	Azure   AzureConfig `mapstructure:"azure"`
	GCS     GCSConfig   `mapstructure:"gcs"`
	File    FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	BasePath    string `mapstructure:"base_path"`
	// Endpoint overrides the blob service URL, e.g. for Azurite.
	Endpoint string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// RetryConfig contains retry settings for storage uploads
type RetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	InitialBackoffMS  int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMS      int     `mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
}

// CatalogConfig selects where schema spec strings are persisted.
type CatalogConfig struct {
	Backend  string         `mapstructure:"backend"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// SQLiteConfig contains SQLite catalog settings
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL catalog settings
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig contains Redis catalog settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings. Metrics are written to a
// Prometheus textfile when the run finishes, and served over HTTP while it
// runs when ListenAddr is set.
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TextfilePath string `mapstructure:"textfile_path"`
	ListenAddr   string `mapstructure:"listen_addr"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if err := c.Schema.Validate(); err != nil {
		return err
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage backend is required")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}

// Validate validates catalog configuration.
func (c *CatalogConfig) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "", "memory":
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("catalog sqlite path is required")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("catalog postgres dsn is required")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("catalog redis addr is required")
		}
	default:
		return fmt.Errorf("unsupported catalog backend: %s", c.Backend)
	}
	return nil
}
