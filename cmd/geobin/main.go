package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

var (
	// Version information (set during build)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "geobin: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "spec":
		return runSpec(args[1:], out)
	case "encode":
		return runEncode(ctx, args[1:], out)
	case "decode":
		return runDecode(args[1:], out)
	case "generate":
		return runGenerate(args[1:], out)
	case "catalog":
		return runCatalog(ctx, args[1:], out)
	case "version":
		fmt.Fprintf(out, "geobin %s (commit %s, built %s)\n", version, commit, buildTime)
		return nil
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "geobin - encode geospatial feature collections into binary track files")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  geobin spec -text <spec> [-type-name <name>]")
	fmt.Fprintln(out, "  geobin encode -config <config.yaml>")
	fmt.Fprintln(out, "  geobin decode -in <file.bin> [-extended] [-limit n]")
	fmt.Fprintln(out, "  geobin generate [-tracks n] [-points n] [-line] [-format collection|delimited|cloudevents] [-out file]")
	fmt.Fprintln(out, "  geobin catalog -config <config.yaml> list|show <name>|remove <name>")
	fmt.Fprintln(out, "  geobin version")
}
