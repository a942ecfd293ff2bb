package main

import (
	"context"
	"fmt"
	"io"

	"github.com/gardar/mergepdf/internal/config"
	"github.com/gardar/mergepdf/pkg/gdocai"
	"github.com/gardar/mergepdf/pkg/ocr"
)

// engineFactory builds an OCR engine. The returned closer may be nil.
type engineFactory func(ctx context.Context, cfg config.OCRConfig) (ocr.Engine, io.Closer, error)

var engineFactories = map[string]engineFactory{
	"none": func(context.Context, config.OCRConfig) (ocr.Engine, io.Closer, error) {
		return nil, nil, nil
	},
	"tesseract": func(_ context.Context, cfg config.OCRConfig) (ocr.Engine, io.Closer, error) {
		binary, err := ocr.ResolveBinary(cfg.Binary)
		if err != nil {
			return nil, nil, err
		}
		t := ocr.NewTesseract(ocr.Output(cfg.Output))
		t.Binary = binary
		t.Timeout = cfg.Timeout
		t.Variables = cfg.Variables
		return t, nil, nil
	},
	"documentai": func(ctx context.Context, cfg config.OCRConfig) (ocr.Engine, io.Closer, error) {
		d := cfg.DocumentAI
		e, err := gdocai.NewEngine(ctx, gdocai.Config{
			ProjectID:       d.ProjectID,
			Location:        d.Location,
			ProcessorID:     d.ProcessorID,
			CredentialsFile: d.CredentialsFile,
			DebugDir:        d.DebugDir,
		})
		if err != nil {
			return nil, nil, err
		}
		return e, e, nil
	},
}

func newEngine(ctx context.Context, cfg config.OCRConfig) (ocr.Engine, io.Closer, error) {
	f, ok := engineFactories[cfg.Engine]
	if !ok {
		if cfg.Engine == "gosseract" {
			return nil, nil, fmt.Errorf("engine %q is not compiled in, rebuild with -tags gosseract", cfg.Engine)
		}
		return nil, nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
	return f(ctx, cfg)
}
