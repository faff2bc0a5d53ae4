package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jittakal/geobin/internal/config/dto"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geobin.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("expected non-nil loader")
	}
	if loader.v == nil {
		t.Fatal("expected non-nil viper instance")
	}
}

func TestLoader_LoadWithValidConfig(t *testing.T) {
	configFile := writeConfig(t, `
application:
  name: test-app

schema:
  type-name: ais:positions
  fields:
    - name: vessel
      type: String
      index: "true"
    - name: dtg
      type: Date
    - name: geom
      type: Point
      srid: 4326
      default: true
  user-data:
    - key: geomesa.index.dtg
      value: dtg

source:
  type: geojson
  geojson:
    path: /data/positions.geojson

encoding:
  format: bin
  track_id_field: vessel
  sort: true
  workers: 4

storage:
  backend: file
  file:
    base_path: /tmp/test
`)

	config, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Application.Name != "test-app" {
		t.Errorf("Application.Name = %s, want test-app", config.Application.Name)
	}
	if config.Schema.TypeName != "ais:positions" {
		t.Errorf("Schema.TypeName = %s, want ais:positions", config.Schema.TypeName)
	}
	fields := config.Schema.FieldList()
	if len(fields) != 3 {
		t.Fatalf("len(fields) = %d, want 3", len(fields))
	}
	if fields[0].Index != "true" {
		t.Errorf("fields[0].Index = %q, want true", fields[0].Index)
	}
	if fields[2].SRID == nil || *fields[2].SRID != 4326 || !fields[2].Default {
		t.Errorf("geom field = %+v", fields[2])
	}
	if len(config.Schema.UserData) != 1 || config.Schema.UserData[0].Key != "geomesa.index.dtg" {
		t.Errorf("UserData = %+v", config.Schema.UserData)
	}
	if !config.Encoding.Sort || config.Encoding.Workers != 4 || config.Encoding.TrackIDField != "vessel" {
		t.Errorf("Encoding = %+v", config.Encoding)
	}

	// Defaults
	if config.Encoding.QueueSize != 256 {
		t.Errorf("Encoding.QueueSize = %d, want 256", config.Encoding.QueueSize)
	}
	if config.Catalog.Backend != "memory" {
		t.Errorf("Catalog.Backend = %s, want memory", config.Catalog.Backend)
	}
	if config.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5", config.Retry.MaxAttempts)
	}
}

func TestLoader_EnvExpansion(t *testing.T) {
	t.Setenv("GEOBIN_TEST_BROKER", "broker-1:9092")
	t.Setenv("GEOBIN_TEST_BUCKET", "tracks-bucket")

	configFile := writeConfig(t, `
schema:
  type-name: positions
  spec: "dtg:Date,*geom:Point:srid=4326"
source:
  type: kafka
kafka:
  bootstrap_servers:
    - ${GEOBIN_TEST_BROKER}
  topic: positions
storage:
  backend: s3
  s3:
    bucket: ${GEOBIN_TEST_BUCKET}
    region: us-east-1
`)

	config, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Storage.S3.Bucket != "tracks-bucket" {
		t.Errorf("S3.Bucket = %s, want tracks-bucket", config.Storage.S3.Bucket)
	}
	if len(config.Kafka.BootstrapServers) != 1 || config.Kafka.BootstrapServers[0] != "broker-1:9092" {
		t.Errorf("BootstrapServers = %v", config.Kafka.BootstrapServers)
	}
	if config.Kafka.IdleTimeout != 10*time.Second {
		t.Errorf("IdleTimeout = %v, want 10s", config.Kafka.IdleTimeout)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("GEOBIN_ENCODING_FORMAT", "parquet")
	t.Setenv("GEOBIN_STORAGE_FILE_BASE_PATH", "/srv/tracks")

	configFile := writeConfig(t, `
schema:
  type-name: positions
  spec: "dtg:Date,*geom:Point:srid=4326"
source:
  geojson:
    path: in.geojson
`)

	config, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Encoding.Format != "parquet" {
		t.Errorf("Encoding.Format = %s, want parquet", config.Encoding.Format)
	}
	if config.Storage.File.BasePath != "/srv/tracks" {
		t.Errorf("File.BasePath = %s, want /srv/tracks", config.Storage.File.BasePath)
	}
}

func TestLoader_LoadWithMissingFile(t *testing.T) {
	_, err := NewLoader().Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error: defaults alone do not name a schema")
	}
	if !strings.Contains(err.Error(), "type-name") {
		t.Errorf("error = %v, want schema type-name failure", err)
	}
}

func validConfig() *dto.ApplicationConfig {
	return &dto.ApplicationConfig{
		Application: dto.ApplicationInfo{Name: "geobin"},
		Schema: dto.FeatureTypeConfig{
			TypeName: "positions",
			Spec:     "dtg:Date,*geom:Point:srid=4326",
		},
		Source: dto.SourceConfig{
			Type:    "geojson",
			GeoJSON: dto.GeoJSONSourceConfig{Path: "in.geojson"},
		},
		Encoding: dto.EncodingConfig{Format: "bin"},
		Storage: dto.StorageConfig{
			Backend: "file",
			File:    dto.FileConfig{BasePath: "/tmp/test"},
		},
	}
}

func TestLoader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *dto.ApplicationConfig)
		wantErr string
	}{
		{"valid", func(c *dto.ApplicationConfig) {}, ""},
		{"missing type name", func(c *dto.ApplicationConfig) { c.Schema.TypeName = "" }, "type-name"},
		{"geojson without path", func(c *dto.ApplicationConfig) { c.Source.GeoJSON.Path = "" }, "source.geojson.path"},
		{"unknown source", func(c *dto.ApplicationConfig) { c.Source.Type = "csv" }, "unsupported source type"},
		{"kafka without topic", func(c *dto.ApplicationConfig) {
			c.Source.Type = "kafka"
			c.Kafka.BootstrapServers = []string{"localhost:9092"}
		}, "kafka topic"},
		{"kafka negative idle timeout", func(c *dto.ApplicationConfig) {
			c.Source.Type = "kafka"
			c.Kafka.BootstrapServers = []string{"localhost:9092"}
			c.Kafka.Topic = "positions"
			c.Kafka.IdleTimeout = -time.Second
		}, "idle timeout"},
		{"s3 missing bucket", func(c *dto.ApplicationConfig) {
			c.Storage.Backend = "s3"
			c.Storage.S3.Region = "us-east-1"
		}, "s3 bucket"},
		{"azure missing container", func(c *dto.ApplicationConfig) {
			c.Storage.Backend = "azure"
			c.Storage.Azure.AccountName = "acct"
		}, "azure container"},
		{"gcs missing bucket", func(c *dto.ApplicationConfig) { c.Storage.Backend = "gcs" }, "gcs bucket"},
		{"unknown backend", func(c *dto.ApplicationConfig) { c.Storage.Backend = "ftp" }, "unsupported storage backend"},
		{"unknown format", func(c *dto.ApplicationConfig) { c.Encoding.Format = "csv" }, "unsupported encoding format"},
		{"bad axis order", func(c *dto.ApplicationConfig) { c.Encoding.AxisOrder = "XY" }, "axis order"},
		{"negative workers", func(c *dto.ApplicationConfig) { c.Encoding.Workers = -1 }, "negative"},
		{"sqlite without path", func(c *dto.ApplicationConfig) { c.Catalog.Backend = "sqlite" }, "sqlite path"},
	}

	loader := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := loader.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
