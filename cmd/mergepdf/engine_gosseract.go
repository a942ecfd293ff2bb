//go:build gosseract

package main

import (
	"context"
	"io"

	"github.com/gardar/mergepdf/internal/config"
	"github.com/gardar/mergepdf/pkg/ocr"
	"github.com/gardar/mergepdf/pkg/ocr/gosseract"
)

func init() {
	engineFactories["gosseract"] = func(_ context.Context, cfg config.OCRConfig) (ocr.Engine, io.Closer, error) {
		e := gosseract.New()
		e.Variables = cfg.Variables
		return e, nil, nil
	}
}
