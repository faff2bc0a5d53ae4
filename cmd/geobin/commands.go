package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jittakal/geobin/internal/catalog"
	"github.com/jittakal/geobin/internal/config"
	"github.com/jittakal/geobin/internal/config/dto"
	"github.com/jittakal/geobin/internal/encoder"
	"github.com/jittakal/geobin/internal/extract"
	"github.com/jittakal/geobin/internal/featuretype"
	"github.com/jittakal/geobin/internal/generator"
	"github.com/jittakal/geobin/internal/kafka"
	"github.com/jittakal/geobin/internal/observability"
	"github.com/jittakal/geobin/internal/pipeline"
	"github.com/jittakal/geobin/internal/server"
	"github.com/jittakal/geobin/internal/source"
	"github.com/jittakal/geobin/internal/storage"
	pkgencoder "github.com/jittakal/geobin/pkg/encoder"
	"github.com/jittakal/geobin/pkg/feature"
	"github.com/jittakal/geobin/pkg/track"
)

// cliLogger is used by commands that run without a config file.
func cliLogger() *zap.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:  "warn",
		Format: "console",
		Output: "stderr",
	})
}

func runSpec(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("spec", flag.ContinueOnError)
	text := fs.String("text", "", "spec string to parse")
	typeName := fs.String("type-name", "feature", "type name, optionally namespace:name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *text == "" {
		return errors.New("spec: -text is required")
	}

	ft, err := featuretype.FromSpec(*typeName, *text)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "type:  %s\n", ft.TypeName())
	fmt.Fprintf(out, "spec:  %s\n", ft.Spec())
	if g, ok := ft.DefaultGeometry(); ok {
		fmt.Fprintf(out, "geom:  %s\n", g.Name)
	}
	if d, ok := ft.DefaultTemporal(); ok {
		fmt.Fprintf(out, "dtg:   %s\n", d.Name)
	}
	fmt.Fprintln(out, "attributes:")
	for i, s := range ft.AttributeSpecs() {
		fmt.Fprintf(out, "  %2d  %s\n", i, s.ToSpec())
	}
	return nil
}

func runDecode(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	in := fs.String("in", "", "BIN file to read")
	extended := fs.Bool("extended", false, "records carry a 64-bit label")
	limit := fs.Int("limit", 0, "print at most n records; zero prints all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("decode: -in is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	variant := encoder.BinBasic
	if *extended {
		variant = encoder.BinExtended
	}
	records, err := encoder.DecodeAllBin(bufio.NewReader(f), variant)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	defer w.Flush()
	for i, r := range records {
		if *limit > 0 && i >= *limit {
			break
		}
		dtg := time.UnixMilli(r.Dtg).UTC().Format(time.RFC3339Nano)
		if variant == encoder.BinExtended {
			fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%d\t%d\n", dtg, r.Lat, r.Lon, r.TrackHash, r.Label)
		} else {
			fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%d\n", dtg, r.Lat, r.Lon, r.TrackHash)
		}
	}
	fmt.Fprintf(w, "# %d records (%s)\n", len(records), variant)
	return nil
}

func runGenerate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	tracks := fs.Int("tracks", 10, "number of tracks")
	points := fs.Int("points", 100, "observations per track")
	line := fs.Bool("line", false, "one LineString per track with a dtg list")
	interval := fs.Duration("interval", time.Minute, "time between observations")
	seed := fs.Int64("seed", 0, "random seed; zero is random")
	format := fs.String("format", "collection", "collection, delimited or cloudevents")
	outPath := fs.String("out", "", "output file; stdout when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	w := out
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	gen := generator.NewGenerator(generator.Config{
		Tracks:   *tracks,
		Points:   *points,
		Line:     *line,
		Interval: *interval,
		Seed:     *seed,
	}, cliLogger())
	fc := gen.Generate()

	bw := bufio.NewWriter(w)
	var err error
	switch *format {
	case "collection":
		err = generator.WriteCollection(bw, fc)
	case "delimited":
		err = generator.WriteDelimited(bw, fc)
	case "cloudevents":
		err = generator.WriteCloudEvents(bw, fc)
	default:
		return fmt.Errorf("generate: unknown format %s", *format)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

func loadConfig(fs *flag.FlagSet, args []string) (*dto.ApplicationConfig, error) {
	configPath := fs.String("config", os.Getenv("CONFIG_PATH"), "path to configuration file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.NewLoader().Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *dto.ApplicationConfig) *zap.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
}

func runCatalog(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("catalog: expected list, show <name> or remove <name>")
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	cat, err := catalog.Open(ctx, cfg.Catalog, logger, nil)
	if err != nil {
		return err
	}
	defer cat.Close()

	switch rest[0] {
	case "list":
		names, err := cat.List(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	case "show", "remove":
		if len(rest) < 2 {
			return fmt.Errorf("catalog %s: type name is required", rest[0])
		}
		if rest[0] == "remove" {
			return cat.Remove(ctx, rest[1])
		}
		text, err := cat.Spec(ctx, rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\n", rest[1], text)
		return nil
	default:
		return fmt.Errorf("catalog: unknown subcommand %s", rest[0])
	}
}

func runEncode(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer logger.Sync()
	logger.Info("starting geobin encode",
		zap.String("version", version),
		zap.String("environment", cfg.Application.Environment),
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	if cfg.Observability.Metrics.Enabled {
		defer func() {
			if err := metrics.WriteTextfile(cfg.Observability.Metrics.TextfilePath); err != nil {
				logger.Error("failed to export metrics", zap.Error(err))
			}
		}()
	}

	// Track cleanup functions, run in reverse order.
	var cleanups []func()
	addCleanup := func(name string, fn func() error) {
		cleanups = append(cleanups, func() {
			if err := fn(); err != nil {
				logger.Warn("cleanup failed", zap.String("component", name), zap.Error(err))
			}
		})
	}
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	ft, err := featuretype.FromConfig(cfg.Schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	status := server.NewJobStatus(ft.TypeName())
	if addr := cfg.Observability.Metrics.ListenAddr; addr != "" {
		srv, err := server.NewServer(addr, status, registry, logger)
		if err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
		srv.Start()
		addCleanup("status-server", func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	cat, err := catalog.Open(ctx, cfg.Catalog, logger, metrics)
	if err != nil {
		return err
	}
	addCleanup("catalog", cat.Close)
	if err := cat.Register(ctx, ft); err != nil {
		return err
	}

	axis, err := track.ParseAxisOrder(cfg.Encoding.AxisOrder)
	if err != nil {
		return err
	}
	roles := extract.Roles{
		DtgField:     cfg.Encoding.DtgField,
		TrackIDField: cfg.Encoding.TrackIDField,
		LabelField:   cfg.Encoding.LabelField,
		LatField:     cfg.Encoding.LatField,
		LonField:     cfg.Encoding.LonField,
		AxisOrder:    axis,
	}
	opts := pipeline.Options{
		Workers:        cfg.Encoding.Workers,
		QueueSize:      cfg.Encoding.QueueSize,
		Sort:           cfg.Encoding.Sort,
		Strict:         cfg.Encoding.Strict,
		MaxSortRecords: cfg.Encoding.MaxSortRecords,
	}

	src, err := openSource(cfg, logger, metrics)
	if err != nil {
		return err
	}
	addCleanup("source", src.Close)

	if cfg.Source.Type == "kafka" && cfg.Kafka.Skipped.Enabled {
		names := make([]string, 0, len(ft.Attributes()))
		for _, a := range ft.Attributes() {
			names = append(names, a.Name)
		}
		publisher, err := kafka.NewSkipPublisher(kafkaClientConfig(cfg.Kafka), kafka.SkipConfig{
			Topic:       cfg.Kafka.Topic,
			TopicSuffix: cfg.Kafka.Skipped.TopicSuffix,
			TypeName:    ft.TypeName(),
			Attributes:  names,
		}, cfg.Application.Name+"-"+uuid.NewString(), logger, metrics)
		if err != nil {
			return fmt.Errorf("failed to create skip publisher: %w", err)
		}
		addCleanup("skip-publisher", publisher.Close)
		opts.Skipped = publisher
	}

	p, err := pipeline.New(ft, roles, opts, logger, metrics)
	if err != nil {
		return err
	}

	format := track.FileFormat(cfg.Encoding.Format)
	compression := cfg.Encoding.Compression
	if compression == "" {
		compression = encoder.DefaultCompression(format)
	}
	writer, router, err := storage.NewWriter(ctx, cfg.Storage, cfg.Retry, storage.EncodingConfig{
		Format:      format,
		Compression: compression,
		Variant:     p.BinVariant(),
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create storage writer: %w", err)
	}
	addCleanup("storage-writer", writer.Close)

	path := router.Route(ft.TypeName(), time.Now())
	status.SetPhase(server.PhaseEncoding)
	res, err := writer.Write(ctx, ft.TypeName(), path, func(ctx context.Context, enc pkgencoder.Encoder, w io.Writer) (track.Stats, error) {
		return p.Run(ctx, src, enc, w)
	})
	if err != nil {
		status.SetPhase(server.PhaseFailed)
		return fmt.Errorf("encode failed: %w", err)
	}
	status.SetPhase(server.PhaseDone)

	logger.Info("encode finished",
		zap.String("location", res.Location),
		zap.Int64("records_read", res.Stats.RecordsRead),
		zap.Int64("records_skipped", res.Stats.RecordsSkipped),
		zap.Int64("tuples_written", res.Stats.TuplesWritten),
		zap.Int64("size_bytes", res.SizeBytes),
		zap.Duration("duration", res.Duration),
	)
	fmt.Fprintln(out, res.Location)
	return nil
}

func openSource(cfg *dto.ApplicationConfig, logger *zap.Logger, metrics *observability.Metrics) (feature.Source, error) {
	switch cfg.Source.Type {
	case "kafka":
		return kafka.NewSource(kafka.SourceConfig{
			ClientConfig: kafkaClientConfig(cfg.Kafka),
			Topic:        cfg.Kafka.Topic,
			StartOffset:  cfg.Kafka.StartOffset,
			Envelope:     kafka.Envelope(cfg.Kafka.Envelope),
			IdleTimeout:  cfg.Kafka.IdleTimeout,
		}, logger, metrics)
	default:
		return source.OpenGeoJSON(cfg.Source.GeoJSON.Path, cfg.Source.GeoJSON.Delimited, logger)
	}
}

func kafkaClientConfig(cfg dto.KafkaConfig) kafka.ClientConfig {
	return kafka.ClientConfig{
		BootstrapServers: cfg.BootstrapServers,
		SecurityProtocol: cfg.SecurityProtocol,
		SASLMechanism:    cfg.SASLMechanism,
		SASLUsername:     cfg.SASLUsername,
		SASLPassword:     cfg.SASLPassword,
		AWSRegion:        cfg.AWSRegion,
		ClientID:         cfg.ClientID,
	}
}
