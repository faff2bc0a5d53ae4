// Package source provides file-backed feature sources.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/feature"
)

// Ensure implementation satisfies interface at compile time.
var _ feature.Source = (*GeoJSONSource)(nil)

// maxLineSize bounds a single newline-delimited feature.
const maxLineSize = 16 * 1024 * 1024

// GeoJSONSource streams features from a GeoJSON FeatureCollection or from
// newline-delimited Feature objects, in file order.
type GeoJSONSource struct {
	closer    io.Closer
	delimited bool
	dec       *json.Decoder
	scanner   *bufio.Scanner
	line      int
	started   bool
	done      bool
	closed    bool
	count     int64
	logger    *zap.Logger
}

// OpenGeoJSON opens the file at path.
func OpenGeoJSON(path string, delimited bool, logger *zap.Logger) (*GeoJSONSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("opened GeoJSON source",
		zap.String("path", path),
		zap.Bool("delimited", delimited),
	)
	s := NewGeoJSONSource(f, delimited)
	s.closer = f
	s.logger = logger
	return s, nil
}

// NewGeoJSONSource reads features from r. Closing the source does not
// close r.
func NewGeoJSONSource(r io.Reader, delimited bool) *GeoJSONSource {
	s := &GeoJSONSource{delimited: delimited, logger: zap.NewNop()}
	if delimited {
		s.scanner = bufio.NewScanner(r)
		s.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	} else {
		s.dec = json.NewDecoder(r)
	}
	return s
}

// Next returns the next feature, or io.EOF after the last one.
func (s *GeoJSONSource) Next(ctx context.Context) (feature.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, apperrors.ErrSourceClosed
	}
	if s.done {
		return nil, io.EOF
	}

	var (
		f   feature.Feature
		err error
	)
	if s.delimited {
		f, err = s.nextLine()
	} else {
		f, err = s.nextMember()
	}
	if err == io.EOF {
		s.done = true
		s.logger.Debug("GeoJSON source exhausted", zap.Int64("features", s.count))
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	s.count++
	return f, nil
}

func (s *GeoJSONSource) nextLine() (feature.Feature, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}
		g, err := geojson.UnmarshalFeature([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", s.line, err)
		}
		return feature.FromGeoJSON(g), nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", s.line+1, err)
	}
	return nil, io.EOF
}

// nextMember advances through {"type":"FeatureCollection","features":[...]}
// decoding one array element at a time.
func (s *GeoJSONSource) nextMember() (feature.Feature, error) {
	if !s.started {
		if err := s.seekFeatures(); err != nil {
			return nil, err
		}
		s.started = true
	}

	if !s.dec.More() {
		return nil, io.EOF
	}
	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("feature %d: %w", s.count, err)
	}
	g, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return nil, fmt.Errorf("feature %d: %w", s.count, err)
	}
	return feature.FromGeoJSON(g), nil
}

// seekFeatures positions the decoder inside the features array, skipping
// any other members of the collection object.
func (s *GeoJSONSource) seekFeatures() error {
	tok, err := s.dec.Token()
	if err != nil {
		return fmt.Errorf("invalid FeatureCollection: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("invalid FeatureCollection: expected object")
	}

	for s.dec.More() {
		tok, err := s.dec.Token()
		if err != nil {
			return fmt.Errorf("invalid FeatureCollection: %w", err)
		}
		key, _ := tok.(string)
		if key != "features" {
			var skip json.RawMessage
			if err := s.dec.Decode(&skip); err != nil {
				return fmt.Errorf("invalid FeatureCollection member %q: %w", key, err)
			}
			continue
		}

		tok, err = s.dec.Token()
		if err != nil {
			return fmt.Errorf("invalid FeatureCollection: %w", err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return fmt.Errorf("invalid FeatureCollection: features is not an array")
		}
		return nil
	}
	return fmt.Errorf("invalid FeatureCollection: no features member")
}

// Count returns the number of features returned so far.
func (s *GeoJSONSource) Count() int64 {
	return s.count
}

// Close closes the underlying file, if the source opened one.
func (s *GeoJSONSource) Close() error {
	s.closed = true
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}
