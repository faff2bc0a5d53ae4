// Package pipeline turns a feature collection into an encoded tuple stream.
//
// Point collections are extracted by a fixed pool of workers fed from a
// bounded queue; a single goroutine owns the output writer. Line
// collections are expanded sequentially. Either way every record is
// delivered to the writer at most once and all goroutines have exited by
// the time Run returns.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/geobin/internal/buffer"
	"github.com/jittakal/geobin/internal/encoder"
	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/internal/extract"
	"github.com/jittakal/geobin/internal/featuretype"
	"github.com/jittakal/geobin/internal/validator"
	pkgencoder "github.com/jittakal/geobin/pkg/encoder"
	"github.com/jittakal/geobin/pkg/feature"
	"github.com/jittakal/geobin/pkg/track"
)

// Defaults applied to zero Options fields.
const (
	DefaultWorkers   = 8
	DefaultQueueSize = 256
)

// MetricsCollector defines metrics operations for the pipeline.
type MetricsCollector interface {
	IncRecordsRead(typeName string)
	IncRecordsSkipped(typeName string)
	AddTuplesEncoded(typeName string, format string, n int)
	ObserveEncodeDuration(typeName string, format string, seconds float64)
}

// Options tunes a pipeline run.
type Options struct {
	// Workers is the size of the extraction pool for point collections.
	Workers int
	// QueueSize bounds the job and result channels.
	QueueSize int
	// Sort buffers every tuple and writes them ordered by timestamp.
	Sort bool
	// Strict aborts the run on the first skipped record.
	Strict bool
	// MaxSortRecords caps the sort buffer; zero is unbounded.
	MaxSortRecords int
	// OnSkip is called from the writer goroutine for each skipped record.
	OnSkip func(f feature.Feature, err error)
	// Skipped receives skipped records, e.g. a Kafka topic.
	Skipped feature.SkipPublisher
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	return o
}

// Pipeline encodes collections of one feature type.
type Pipeline struct {
	ft        *featuretype.FeatureType
	extractor *extract.Extractor
	validator *validator.RecordValidator
	opts      Options
	logger    *zap.Logger
	metrics   MetricsCollector
}

// New validates roles against ft and returns a ready pipeline. Any
// configuration problem is returned here as a ValidationError.
func New(ft *featuretype.FeatureType, roles extract.Roles, opts Options, logger *zap.Logger, metrics MetricsCollector) (*Pipeline, error) {
	ex, err := extract.New(ft, roles)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		ft:        ft,
		extractor: ex,
		validator: validator.NewRecordValidator(ft, roles.LatField == ""),
		opts:      opts.withDefaults(),
		logger:    logger.With(zap.String("type_name", ft.TypeName())),
		metrics:   metrics,
	}, nil
}

// BinVariant returns the record layout matching the pipeline's roles.
func (p *Pipeline) BinVariant() encoder.BinVariant {
	if p.extractor.Roles().Labeled() {
		return encoder.BinExtended
	}
	return encoder.BinBasic
}

// EncodeCollection encodes every record of src into sink using the binary
// track format. The extended layout is used iff roles names a label field.
// Configuration errors are returned before anything is written to sink.
func EncodeCollection(ctx context.Context, ft *featuretype.FeatureType, src feature.Source, roles extract.Roles, opts Options, sink io.Writer) (track.Stats, error) {
	p, err := New(ft, roles, opts, nil, nil)
	if err != nil {
		return track.Stats{}, err
	}
	return p.Run(ctx, src, encoder.NewBinEncoder(p.BinVariant()), sink)
}

// Run reads src to the end and writes the encoded tuples to sink. On
// success the encoder's writer is closed (flushing any trailer); sink
// itself is never closed.
func (p *Pipeline) Run(ctx context.Context, src feature.Source, enc pkgencoder.Encoder, sink io.Writer) (track.Stats, error) {
	start := time.Now()
	counter := &countingWriter{w: sink}

	tw, err := enc.NewWriter(counter)
	if err != nil {
		return track.Stats{}, err
	}

	run := &run{
		p:      p,
		enc:    enc,
		writer: tw,
	}
	if p.opts.Sort {
		run.buf = buffer.New(p.opts.MaxSortRecords)
	}

	if p.extractor.IsLine() {
		err = run.sequential(ctx, src)
	} else {
		err = run.concurrent(ctx, src)
	}
	if err == nil {
		err = run.finish()
	}

	run.stats.BytesWritten = counter.n
	if p.metrics != nil {
		p.metrics.ObserveEncodeDuration(p.ft.TypeName(), string(enc.Format()), time.Since(start).Seconds())
	}
	if err != nil {
		p.logger.Error("encode failed",
			zap.Error(err),
			zap.Int64("records_read", run.stats.RecordsRead),
			zap.Int64("tuples_written", run.stats.TuplesWritten),
		)
		return run.stats, err
	}

	p.logger.Info("encoded collection",
		zap.String("format", string(enc.Format())),
		zap.Int64("records_read", run.stats.RecordsRead),
		zap.Int64("records_skipped", run.stats.RecordsSkipped),
		zap.Int64("tuples_written", run.stats.TuplesWritten),
		zap.Int64("bytes_written", run.stats.BytesWritten),
		zap.Duration("duration", time.Since(start)),
	)
	return run.stats, nil
}

// run holds the writer-side state of one Run call. It is only touched by
// the calling goroutine.
type run struct {
	p      *Pipeline
	enc    pkgencoder.Encoder
	writer pkgencoder.TupleWriter
	buf    *buffer.TupleBuffer
	seq    uint64
	stats  track.Stats
}

type job struct {
	seq uint64
	f   feature.Feature
}

type result struct {
	seq    uint64
	f      feature.Feature
	tuples []track.PointTuple
	err    error
}

// convert validates and extracts one record. Safe for concurrent use.
func (p *Pipeline) convert(f feature.Feature) ([]track.PointTuple, error) {
	if err := p.validator.Validate(f); err != nil {
		return nil, err
	}
	return p.extractor.Extract(f)
}

func (r *run) concurrent(ctx context.Context, src feature.Source) error {
	ctx, cancel := context.WithCancel(ctx)

	jobs := make(chan job, r.p.opts.QueueSize)
	results := make(chan result, r.p.opts.QueueSize)

	var srcErr error
	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		defer close(jobs)
		var seq uint64
		for {
			f, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				srcErr = err
				return
			}
			select {
			case jobs <- job{seq: seq, f: f}:
				seq++
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < r.p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				tuples, err := r.p.convert(j.f)
				select {
				case results <- result{seq: j.seq, f: j.f, tuples: tuples, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Every exit path stops the producer and workers and waits for them.
	defer func() {
		cancel()
		for range results {
		}
		<-producerDone
	}()

	for res := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.handle(ctx, res); err != nil {
			return err
		}
	}

	<-producerDone
	if srcErr != nil {
		return srcErr
	}
	return ctx.Err()
}

func (r *run) sequential(ctx context.Context, src feature.Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		tuples, convErr := r.p.convert(f)
		if err := r.handle(ctx, result{seq: r.seq, f: f, tuples: tuples, err: convErr}); err != nil {
			return err
		}
		r.seq++
	}
}

// handle accounts for one converted record and writes or buffers its tuples.
func (r *run) handle(ctx context.Context, res result) error {
	r.stats.RecordsRead++
	if r.p.metrics != nil {
		r.p.metrics.IncRecordsRead(r.p.ft.TypeName())
	}

	if res.err != nil {
		if !apperrors.IsSkipped(res.err) {
			return res.err
		}
		return r.skip(ctx, res.f, res.err)
	}

	for _, t := range res.tuples {
		if r.buf != nil {
			if err := r.buf.Add(res.seq, t); err != nil {
				return err
			}
			continue
		}
		if err := r.write(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) skip(ctx context.Context, f feature.Feature, err error) error {
	r.stats.RecordsSkipped++
	if r.p.metrics != nil {
		r.p.metrics.IncRecordsSkipped(r.p.ft.TypeName())
	}

	reason := err.Error()
	var skipped *apperrors.SkippedRecordError
	if errors.As(err, &skipped) {
		reason = skipped.Reason
	}
	r.p.logger.Warn("skipping record",
		zap.String("feature_id", f.ID()),
		zap.String("reason", reason),
	)

	if r.p.opts.OnSkip != nil {
		r.p.opts.OnSkip(f, err)
	}
	if r.p.opts.Skipped != nil {
		if perr := r.p.opts.Skipped.Publish(ctx, f, reason); perr != nil {
			r.p.logger.Warn("failed to publish skipped record",
				zap.String("feature_id", f.ID()),
				zap.Error(perr),
			)
		}
	}

	if r.p.opts.Strict {
		return err
	}
	return nil
}

func (r *run) write(t track.PointTuple) error {
	if err := r.writer.Write(t); err != nil {
		return err
	}
	r.stats.TuplesWritten++
	return nil
}

// finish drains the sort buffer and closes the tuple writer.
func (r *run) finish() error {
	if r.buf != nil {
		for _, t := range r.buf.Drain() {
			if err := r.write(t); err != nil {
				return err
			}
		}
	}
	if err := r.writer.Close(); err != nil {
		return err
	}
	if r.p.metrics != nil {
		r.p.metrics.AddTuplesEncoded(r.p.ft.TypeName(), string(r.enc.Format()), int(r.stats.TuplesWritten))
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
