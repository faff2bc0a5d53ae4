package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/geobin/internal/config/dto"
	"github.com/jittakal/geobin/internal/encoder"
	apperrors "github.com/jittakal/geobin/internal/errors"
	pkgencoder "github.com/jittakal/geobin/pkg/encoder"
	"github.com/jittakal/geobin/pkg/track"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		scheme string
		path   string
		want   string
	}{
		{"full uri", "s3", "s3://bucket/base/ships/dt=2024-01-01/", "base/ships/dt=2024-01-01/f.bin"},
		{"bucket only", "s3", "s3://bucket", "f.bin"},
		{"bare key", "gs", "ships/dt=2024-01-01", "ships/dt=2024-01-01/f.bin"},
		{"leading slash", "wasbs", "/ships/", "ships/f.bin"},
		{"empty", "s3", "", "f.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectKey(tt.scheme, tt.path, "f.bin"); got != tt.want {
				t.Errorf("objectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileNamer(t *testing.T) {
	clock := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	n := newFileNamer()
	n.now = func() time.Time { return clock }

	if got := n.next(".bin"); got != "tracks_20240506_070809_001.bin" {
		t.Errorf("first name = %s", got)
	}
	if got := n.next(".bin"); got != "tracks_20240506_070809_002.bin" {
		t.Errorf("second name = %s", got)
	}

	clock = clock.Add(time.Second)
	if got := n.next(".parquet"); got != "tracks_20240506_070810_001.parquet" {
		t.Errorf("name after tick = %s", got)
	}
}

func TestSpool(t *testing.T) {
	enc := encoder.NewBinEncoder(encoder.BinBasic)

	s, err := spool(context.Background(), "test", enc, tupleFill(3))
	if err != nil {
		t.Fatalf("spool() error = %v", err)
	}
	if s.size != 3*encoder.BinBasicSize {
		t.Errorf("size = %d, want %d", s.size, 3*encoder.BinBasicSize)
	}
	if !strings.HasSuffix(s.path, ".bin") {
		t.Errorf("temp file %s lacks extension", s.path)
	}

	s.remove()
	if _, err := os.Stat(s.path); !os.IsNotExist(err) {
		t.Errorf("temp file still present: %v", err)
	}
}

func TestSpool_FillErrorRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)

	fillErr := errors.New("boom")
	_, err := spool(context.Background(), "test", encoder.NewBinEncoder(encoder.BinBasic),
		func(context.Context, pkgencoder.Encoder, io.Writer) (track.Stats, error) {
			return track.Stats{}, fillErr
		})
	if !errors.Is(err, fillErr) {
		t.Fatalf("spool() error = %v, want %v", err, fillErr)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	retryable := &apperrors.StorageError{Operation: "upload", Path: "k", Err: errors.New("503")}
	permanent := &apperrors.StorageError{Operation: "open", Path: "k", Err: errors.New("missing")}

	tests := []struct {
		name      string
		errs      []error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{"first try", []error{nil}, 3, 1, nil},
		{"succeeds after retries", []error{retryable, retryable, nil}, 3, 3, nil},
		{"attempts exhausted", []error{retryable, retryable, retryable}, 3, 3, retryable},
		{"permanent error", []error{permanent, nil}, 3, 1, permanent},
		{"zero attempts runs once", []error{retryable}, 0, 1, retryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := RetryPolicy{MaxAttempts: tt.attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
			calls := 0
			err := p.Do(context.Background(), func(context.Context) error {
				e := tt.errs[calls]
				calls++
				return e
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Errorf("Do() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryPolicy_DoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour}

	err := p.Do(ctx, func(context.Context) error {
		cancel()
		return &apperrors.StorageError{Operation: "upload", Err: errors.New("503")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := RetryPolicyFromConfig(dto.RetryConfig{
		Enabled:           true,
		MaxAttempts:       4,
		InitialBackoffMS:  100,
		MaxBackoffMS:      1000,
		BackoffMultiplier: 1.5,
	}, nil)
	if p.MaxAttempts != 4 || p.InitialBackoff != 100*time.Millisecond || p.MaxBackoff != time.Second || p.Multiplier != 1.5 {
		t.Errorf("unexpected policy %+v", p)
	}

	disabled := RetryPolicyFromConfig(dto.RetryConfig{MaxAttempts: 9}, nil)
	if disabled.MaxAttempts != 1 {
		t.Errorf("disabled MaxAttempts = %d, want 1", disabled.MaxAttempts)
	}
}

func TestS3Writer_PutInputSSE(t *testing.T) {
	tests := []struct {
		name    string
		writer  S3Writer
		wantSSE types.ServerSideEncryption
		wantKMS string
	}{
		{"disabled", S3Writer{bucket: "b"}, "", ""},
		{"aes256", S3Writer{bucket: "b", sseEnabled: true}, types.ServerSideEncryptionAes256, ""},
		{"kms", S3Writer{bucket: "b", sseEnabled: true, sseKMSKeyID: "key-1"}, types.ServerSideEncryptionAwsKms, "key-1"},
	}

	for i := range tests {
		tt := &tests[i]
		t.Run(tt.name, func(t *testing.T) {
			in := tt.writer.putInput("k", strings.NewReader(""))
			if *in.Bucket != "b" || *in.Key != "k" {
				t.Errorf("bucket/key = %s/%s", *in.Bucket, *in.Key)
			}
			if in.ServerSideEncryption != tt.wantSSE {
				t.Errorf("ServerSideEncryption = %q, want %q", in.ServerSideEncryption, tt.wantSSE)
			}
			gotKMS := ""
			if in.SSEKMSKeyId != nil {
				gotKMS = *in.SSEKMSKeyId
			}
			if gotKMS != tt.wantKMS {
				t.Errorf("SSEKMSKeyId = %q, want %q", gotKMS, tt.wantKMS)
			}
		})
	}
}

func TestS3Writer_WriteToEndpoint(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	var (
		mu    sync.Mutex
		paths []string
		sizes []int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		mu.Lock()
		paths = append(paths, r.URL.Path)
		sizes = append(sizes, len(body))
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	metrics := &mockMetricsCollector{}
	writer, err := NewS3Writer(context.Background(), S3Config{
		Bucket:       "tracks-bucket",
		Region:       "us-east-1",
		Endpoint:     srv.URL,
		UsePathStyle: true,
	}, binEncoding(), RetryPolicy{MaxAttempts: 1}, nil, metrics)
	if err != nil {
		t.Fatalf("NewS3Writer() error = %v", err)
	}
	defer writer.Close()

	res, err := writer.Write(context.Background(), "ships", "s3://tracks-bucket/base/ships/dt=2024-01-01/", tupleFill(4))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 {
		t.Fatalf("PUT requests = %d, want 1", len(paths))
	}
	if !strings.HasPrefix(paths[0], "/tracks-bucket/base/ships/dt=2024-01-01/tracks_") {
		t.Errorf("object path = %s", paths[0])
	}
	if res.SizeBytes != 4*encoder.BinBasicSize {
		t.Errorf("SizeBytes = %d, want %d", res.SizeBytes, 4*encoder.BinBasicSize)
	}
	if metrics.lastFileStatus != "success" {
		t.Errorf("file status = %s", metrics.lastFileStatus)
	}
}

func TestAzureConnectionHelpers(t *testing.T) {
	cfg := AzureConfig{AccountName: "acct", AccountKey: "a2V5"}
	if got := azureConnectionString(cfg); !strings.Contains(got, "AccountName=acct;AccountKey=a2V5;EndpointSuffix=core.windows.net") {
		t.Errorf("connection string = %s", got)
	}
	if got := azureServiceURL(cfg); got != "https://acct.blob.core.windows.net/" {
		t.Errorf("service URL = %s", got)
	}

	cfg.Endpoint = "http://127.0.0.1:10000/acct"
	if got := azureConnectionString(cfg); !strings.Contains(got, "BlobEndpoint=http://127.0.0.1:10000/acct") {
		t.Errorf("connection string = %s", got)
	}
	if got := azureServiceURL(cfg); got != cfg.Endpoint {
		t.Errorf("service URL = %s", got)
	}
}

func TestContentType(t *testing.T) {
	tests := map[track.FileFormat]string{
		track.FormatAvro:    "application/avro",
		track.FormatParquet: "application/octet-stream",
		track.FormatBin:     "application/octet-stream",
	}
	for format, want := range tests {
		if got := contentType(format); got != want {
			t.Errorf("contentType(%s) = %s, want %s", format, got, want)
		}
	}
}

func TestNewWriter_Backends(t *testing.T) {
	tests := []struct {
		name    string
		cfg     dto.StorageConfig
		wantErr bool
	}{
		{"file", dto.StorageConfig{Backend: "file", File: dto.FileConfig{BasePath: t.TempDir()}}, false},
		{"unknown", dto.StorageConfig{Backend: "ftp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, r, err := NewWriter(context.Background(), tt.cfg, dto.RetryConfig{}, binEncoding(), nil, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer w.Close()
			if r == nil {
				t.Fatal("expected router")
			}
		})
	}
}
