package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_Commands(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		wantText string
	}{
		{name: "no command", args: nil, wantErr: true},
		{name: "unknown", args: []string{"frobnicate"}, wantErr: true},
		{name: "help", args: []string{"help"}, wantText: "Usage:"},
		{name: "version", args: []string{"version"}, wantText: "geobin dev"},
		{
			name:     "spec",
			args:     []string{"spec", "-type-name", "geo:ships", "-text", "name:String, dtg:Date ,*geom:Point:srid=4326"},
			wantText: "spec:  name:String,dtg:Date,*geom:Point:srid=4326",
		},
		{name: "spec without text", args: []string{"spec"}, wantErr: true},
		{name: "bad spec", args: []string{"spec", "-text", "a:Nope"}, wantErr: true},
		{name: "decode without input", args: []string{"decode"}, wantErr: true},
		{name: "generate unknown format", args: []string{"generate", "-format", "kml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), tt.args, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantText != "" && !strings.Contains(out.String(), tt.wantText) {
				t.Errorf("output %q does not contain %q", out.String(), tt.wantText)
			}
		})
	}
}

func TestRun_GenerateEncodeDecode(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ships.geojson")
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, []string{"generate", "-tracks", "2", "-points", "3", "-seed", "5", "-out", input}, &out); err != nil {
		t.Fatalf("generate error = %v", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	config := fmt.Sprintf(`application:
  name: geobin-test
schema:
  type-name: geo:ships
  spec: "trackId:String,name:String,dtg:Date,speed:Double,*geom:Point:srid=4326"
source:
  type: geojson
  geojson:
    path: %s
encoding:
  format: bin
  track_id_field: trackId
  sort: true
storage:
  backend: file
  file:
    base_path: %s
catalog:
  backend: sqlite
  sqlite:
    path: %s
observability:
  logging:
    level: error
    output: stderr
  metrics:
    enabled: true
    textfile_path: %s
    listen_addr: 127.0.0.1:0
`, input, filepath.Join(dir, "out"), filepath.Join(dir, "catalog.db"), filepath.Join(dir, "geobin.prom"))
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out.Reset()
	if err := run(ctx, []string{"encode", "-config", configPath}, &out); err != nil {
		t.Fatalf("encode error = %v", err)
	}
	location := strings.TrimSpace(out.String())
	if !strings.Contains(location, filepath.Join("geo:ships", "dt=")) || !strings.HasSuffix(location, ".bin") {
		t.Errorf("location = %s", location)
	}
	info, err := os.Stat(location)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 6*20 {
		t.Errorf("file size = %d, want %d", info.Size(), 6*20)
	}

	prom, err := os.ReadFile(filepath.Join(dir, "geobin.prom"))
	if err != nil {
		t.Fatalf("metrics textfile error = %v", err)
	}
	if !strings.Contains(string(prom), "geobin_") {
		t.Errorf("metrics textfile has no geobin metrics")
	}

	out.Reset()
	if err := run(ctx, []string{"decode", "-in", location}, &out); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !strings.Contains(out.String(), "# 6 records (basic)") {
		t.Errorf("decode output = %s", out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"catalog", "-config", configPath, "list"}, &out); err != nil {
		t.Fatalf("catalog list error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "geo:ships" {
		t.Errorf("catalog list = %q", out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"catalog", "-config", configPath, "show", "geo:ships"}, &out); err != nil {
		t.Fatalf("catalog show error = %v", err)
	}
	if !strings.Contains(out.String(), "*geom:Point:srid=4326") {
		t.Errorf("catalog show = %q", out.String())
	}
}
