// mergepdf normalizes a list of documents and images into Letter-sized pages and merges them
// into one PDF.
//
// Each manifest item lists candidate sources in preference order; the first one that can be
// turned into a PDF wins. Images are fitted onto the page canvas and run through OCR so the
// result is searchable. Items with no usable source are dropped and reported.
//
// Usage:
//
//	mergepdf -manifest items.yml -output merged.pdf [-config config.yml]
//
// Manifest:
//
//	items:
//	  - id: "1"
//	    sources: [scans/1.jpg, gs://bucket/1.pdf]
//	  - id: "2"
//	    sources: [https://example.com/2.pdf]
//
// Relative paths are resolved against the manifest's directory. The output may be a local
// path or a gs:// URL.
//
// Configuration is read from the optional YAML file and MERGEPDF_* environment variables,
// see internal/config.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cloud.google.com/go/storage"

	"github.com/gardar/mergepdf/internal/config"
	"github.com/gardar/mergepdf/pkg/canvas"
	"github.com/gardar/mergepdf/pkg/fit"
	"github.com/gardar/mergepdf/pkg/pdfocr"
	"github.com/gardar/mergepdf/pkg/pipeline"
	"github.com/gardar/mergepdf/pkg/source"
)

func main() {
	configPath := flag.String("config", "", "Path to the config YAML file")
	manifestPath := flag.String("manifest", "", "Path to the YAML manifest of items (required)")
	outputPath := flag.String("output", "", "Path or gs:// URL for the merged PDF (required)")
	flag.Parse()

	if *manifestPath == "" || *outputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -manifest and -output flags are required")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *manifestPath, *outputPath, logger); err != nil {
		logger.Error("Merge failed.", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, manifestPath, output string, logger *slog.Logger) error {
	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}
	spec, err := canvas.New(cfg.DPI)
	if err != nil {
		return err
	}

	engine, closer, err := newEngine(ctx, cfg.OCR)
	if err != nil {
		return fmt.Errorf("ocr engine: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	router := &source.Router{Fetchers: map[string]source.Fetcher{
		"file":  &source.File{BaseDir: filepath.Dir(manifestPath)},
		"http":  source.NewHTTP(),
		"https": source.NewHTTP(),
	}}
	var gcs *storage.Client
	if m.usesScheme("gs") || source.Scheme(output) == "gs" {
		gcs, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("storage client: %w", err)
		}
		defer gcs.Close()
		router.Fetchers["gs"] = &source.GCS{Client: gcs}
	}

	embedder := pdfocr.NewEmbedder(spec, engine, logger)
	embedder.Language = cfg.OCR.Language
	embedder.Debug = cfg.OCR.DebugLayer

	p := &pipeline.Pipeline{
		Fitter:      fit.New(spec, logger),
		Embedder:    embedder,
		ScratchRoot: cfg.ScratchDir,
		Workers:     cfg.Workers,
		KeepFiles:   cfg.KeepFiles,
		Logger:      logger,
	}
	res, err := p.Run(ctx, m.pipelineItems(router))
	if err != nil {
		return err
	}
	defer res.Close()

	if source.Scheme(output) == "gs" {
		err = source.Upload(ctx, gcs, res.Path, output, logger)
	} else {
		err = writeOutput(res.Path, output)
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("Merged PDF written.",
		"output", output,
		"resolved", res.Resolved,
		"unresolved", res.Unresolved,
		"duplicates", res.Duplicates,
		"keptDir", keptDir(cfg, res),
	)
	return nil
}

// writeOutput copies the merged file into place.
func writeOutput(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func keptDir(cfg *config.Config, res *pipeline.Result) string {
	if cfg.KeepFiles {
		return res.Dir
	}
	return ""
}
