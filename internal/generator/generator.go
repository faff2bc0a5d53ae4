// Package generator produces synthetic vessel tracks as GeoJSON.
package generator

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/jaswdr/faker"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

const (
	// EventType is the CloudEvents type of generated observations.
	EventType = "geobin.track.observation"
	// EventSource is the CloudEvents source of generated observations.
	EventSource = "/geobin/generator"
)

// Config controls the shape of the generated data.
type Config struct {
	Tracks   int
	Points   int
	Line     bool
	Start    time.Time
	Interval time.Duration
	// Seed makes output reproducible when non-zero.
	Seed int64
}

// Generator builds random-walk tracks.
type Generator struct {
	config Config
	faker  faker.Faker
	logger *zap.Logger
}

// NewGenerator creates a new track generator
func NewGenerator(config Config, logger *zap.Logger) *Generator {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Start.IsZero() {
		config.Start = time.Now().UTC().Truncate(time.Second)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := faker.New()
	if config.Seed != 0 {
		f = faker.NewWithSeed(rand.NewSource(config.Seed))
	}
	return &Generator{config: config, faker: f, logger: logger}
}

// Generate returns Tracks*Points point features, or Tracks line features
// when Line is set.
func (g *Generator) Generate() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < g.config.Tracks; i++ {
		fc.Features = append(fc.Features, g.track()...)
	}
	g.logger.Info("generated tracks",
		zap.Int("tracks", g.config.Tracks),
		zap.Int("points", g.config.Points),
		zap.Bool("line", g.config.Line),
		zap.Int("features", len(fc.Features)),
	)
	return fc
}

func (g *Generator) track() []*geojson.Feature {
	trackID := g.faker.Numerify("trk-########")
	name := g.faker.Person().Name()
	lon := float64(g.faker.IntBetween(-170000, 170000)) / 1000
	lat := float64(g.faker.IntBetween(-80000, 80000)) / 1000

	var (
		features []*geojson.Feature
		line     orb.LineString
		dtgs     []any
	)
	for p := 0; p < g.config.Points; p++ {
		dtg := g.config.Start.Add(time.Duration(p) * g.config.Interval).Format(time.RFC3339)
		pt := orb.Point{lon, lat}

		if g.config.Line {
			line = append(line, pt)
			dtgs = append(dtgs, dtg)
		} else {
			f := geojson.NewFeature(pt)
			f.ID = fmt.Sprintf("%s-%d", trackID, p)
			f.Properties["trackId"] = trackID
			f.Properties["name"] = name
			f.Properties["dtg"] = dtg
			f.Properties["speed"] = float64(g.faker.IntBetween(0, 300)) / 10
			features = append(features, f)
		}

		lon = clamp(lon+float64(g.faker.IntBetween(-100, 100))/1000, -180, 180)
		lat = clamp(lat+float64(g.faker.IntBetween(-100, 100))/1000, -90, 90)
	}

	if g.config.Line && len(line) > 0 {
		f := geojson.NewFeature(line)
		f.ID = trackID
		f.Properties["trackId"] = trackID
		f.Properties["name"] = name
		f.Properties["dtg"] = dtgs
		features = append(features, f)
	}
	return features
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WriteCollection writes fc as a single FeatureCollection document.
func WriteCollection(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteDelimited writes one feature per line.
func WriteDelimited(w io.Writer, fc *geojson.FeatureCollection) error {
	for _, f := range fc.Features {
		data, err := f.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal feature %v: %w", f.ID, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// ToCloudEvent wraps a feature in a CloudEvent with the feature as JSON data.
func ToCloudEvent(f *geojson.Feature, at time.Time) (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetSpecVersion(cloudevents.VersionV1)
	event.SetID(uuid.New().String())
	event.SetType(EventType)
	event.SetSource(EventSource)
	event.SetTime(at)
	if err := event.SetData(cloudevents.ApplicationJSON, f); err != nil {
		return event, fmt.Errorf("failed to set event data: %w", err)
	}
	return event, nil
}

// WriteCloudEvents writes one CloudEvent per line.
func WriteCloudEvents(w io.Writer, fc *geojson.FeatureCollection) error {
	now := time.Now().UTC()
	for _, f := range fc.Features {
		event, err := ToCloudEvent(f, now)
		if err != nil {
			return err
		}
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}
