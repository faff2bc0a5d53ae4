package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/feature"
)

func skippedFeature() *feature.SimpleFeature {
	return &feature.SimpleFeature{
		FID:        "f-1",
		Attributes: map[string]any{"name": "alpha", "dtg": "not-a-date"},
		Geom:       orb.Point{1, 2},
	}
}

func TestSkipPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var rec SkippedRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if rec.Reason != "bad date" || rec.TypeName != "ships" || rec.SourceTopic != "tracks" {
			return fmt.Errorf("unexpected record %+v", rec)
		}
		var f map[string]any
		if err := json.Unmarshal(rec.Feature, &f); err != nil {
			return err
		}
		props, _ := f["properties"].(map[string]any)
		if props["name"] != "alpha" {
			return fmt.Errorf("unexpected properties %v", props)
		}
		return nil
	})

	metrics := newMockKafkaMetrics()
	p := newSkipPublisher(producer, SkipConfig{
		Topic:       "tracks",
		TopicSuffix: "-skipped",
		TypeName:    "ships",
		Attributes:  []string{"name"},
	}, "test", zap.NewNop(), metrics)

	if p.Topic() != "tracks-skipped" {
		t.Errorf("Topic() = %s", p.Topic())
	}
	if err := p.Publish(context.Background(), skippedFeature(), "bad date"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if metrics.published["success"] != 1 {
		t.Errorf("published metrics = %v", metrics.published)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestSkipPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	sendErr := errors.New("broker unavailable")
	producer.ExpectSendMessageAndFail(sendErr)

	metrics := newMockKafkaMetrics()
	p := newSkipPublisher(producer, SkipConfig{Topic: "tracks", TopicSuffix: "-skipped"}, "test", zap.NewNop(), metrics)
	defer p.Close()

	err := p.Publish(context.Background(), skippedFeature(), "bad date")
	if !errors.Is(err, sendErr) {
		t.Errorf("Publish() error = %v, want %v", err, sendErr)
	}
	if metrics.published["failure"] != 1 {
		t.Errorf("published metrics = %v", metrics.published)
	}
}

func TestSkipPublisher_PublishAfterClose(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newSkipPublisher(producer, SkipConfig{Topic: "tracks"}, "test", zap.NewNop(), nil)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := p.Publish(context.Background(), skippedFeature(), "x"); !errors.Is(err, apperrors.ErrWriterClosed) {
		t.Errorf("Publish() error = %v, want ErrWriterClosed", err)
	}
}
