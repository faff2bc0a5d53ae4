package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestMetrics_PipelineCounters(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncRecordsRead("ais:tracks")
	metrics.IncRecordsRead("ais:tracks")
	metrics.IncRecordsSkipped("ais:tracks")
	metrics.AddTuplesEncoded("ais:tracks", "bin", 42)

	if got := testutil.ToFloat64(metrics.RecordsRead.WithLabelValues("ais:tracks")); got != 2 {
		t.Errorf("records read = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.RecordsSkipped.WithLabelValues("ais:tracks")); got != 1 {
		t.Errorf("records skipped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.TuplesEncoded.WithLabelValues("ais:tracks", "bin")); got != 42 {
		t.Errorf("tuples encoded = %v, want 42", got)
	}
}

func TestMetrics_IncMessagesConsumed(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncMessagesConsumed("positions", 0)
	metrics.IncMessagesConsumed("positions", 1)
	metrics.IncMessagesConsumed("positions", 1)

	if got := testutil.ToFloat64(metrics.MessagesConsumed.WithLabelValues("positions", "1")); got != 2 {
		t.Errorf("partition 1 = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(metrics.MessagesConsumed); got != 2 {
		t.Errorf("series = %d, want 2", got)
	}
}

func TestMetrics_Storage(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncFilesWritten("tracks", "bin", "success")
	metrics.IncFilesWritten("tracks", "parquet", "failure")
	metrics.ObserveFileSize("tracks", "bin", 2048)
	metrics.ObserveStorageWriteDuration("s3", 0.5)
	metrics.IncStorageErrors("s3", "upload")
	metrics.IncStorageErrors("s3", "upload")

	if got := testutil.ToFloat64(metrics.StorageErrors.WithLabelValues("s3", "upload")); got != 2 {
		t.Errorf("storage errors = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(metrics.FilesWritten); got != 2 {
		t.Errorf("files written series = %d, want 2", got)
	}
	if got := testutil.CollectAndCount(metrics.FileSize); got != 1 {
		t.Errorf("file size series = %d, want 1", got)
	}
}

func TestMetrics_Catalog(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.IncCatalogOperations("sqlite", "register", "success")
	metrics.IncSkippedPublished("positions-skipped", "success")

	if got := testutil.ToFloat64(metrics.CatalogOperations.WithLabelValues("sqlite", "register", "success")); got != 1 {
		t.Errorf("catalog ops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.SkippedPublished.WithLabelValues("positions-skipped", "success")); got != 1 {
		t.Errorf("skipped published = %v, want 1", got)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.IncRecordsRead("tracks")
	metrics.ObserveEncodeDuration("tracks", "bin", 0.25)

	path := filepath.Join(t.TempDir(), "geobin.prom")
	if err := metrics.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`geobin_records_read_total{type_name="tracks"} 1`,
		"geobin_encode_duration_seconds_count",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
}
