package kafka

import (
	"encoding/json"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/jittakal/geobin/internal/validator"
	"github.com/jittakal/geobin/pkg/feature"
)

// Envelope names the message value layout.
type Envelope string

const (
	// EnvelopeGeoJSON is a bare GeoJSON Feature.
	EnvelopeGeoJSON Envelope = "geojson"
	// EnvelopeCloudEvents is a structured-mode CloudEvent whose data is a
	// GeoJSON Feature.
	EnvelopeCloudEvents Envelope = "cloudevents"
)

// Decoder turns a message value into a feature.
type Decoder func(value []byte) (feature.Feature, error)

// NewDecoder returns the decoder for an envelope.
func NewDecoder(envelope Envelope) (Decoder, error) {
	switch envelope {
	case EnvelopeGeoJSON, "":
		return DecodeGeoJSON, nil
	case EnvelopeCloudEvents:
		v := validator.NewEnvelopeValidator()
		return func(value []byte) (feature.Feature, error) {
			return decodeCloudEvent(value, v)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported envelope: %s", envelope)
	}
}

// DecodeGeoJSON decodes a GeoJSON Feature.
func DecodeGeoJSON(value []byte) (feature.Feature, error) {
	g, err := geojson.UnmarshalFeature(value)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal GeoJSON feature: %w", err)
	}
	return feature.FromGeoJSON(g), nil
}

// decodeCloudEvent validates the envelope and decodes its data. A feature
// without an id takes the event id.
func decodeCloudEvent(value []byte, v *validator.EnvelopeValidator) (feature.Feature, error) {
	var event cloudevents.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CloudEvent: %w", err)
	}
	if err := v.Validate(&event); err != nil {
		return nil, err
	}

	f, err := DecodeGeoJSON(event.Data())
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", event.ID(), err)
	}
	sf := f.(*feature.SimpleFeature)
	if sf.FID == "" {
		sf.FID = event.ID()
	}
	return sf, nil
}
