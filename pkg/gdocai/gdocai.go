// Package gdocai is an OCR engine backed by Google Document AI.
//
// Each page image is sent to an OCR processor as a raw PNG document. The response is
// converted into hOCR pages: Document AI lines become hOCR lines, and the tokens whose
// text anchors fall inside a line become its words. Normalized vertices are scaled by
// the page dimension so every box is in image pixels, matching what Tesseract reports.
//
// Usage requirements:
//
// - Google Cloud project with Document AI API enabled
// - Document AI processor configured for OCR
// - A service account key file, or Application Default Credentials
package gdocai

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"golang.org/x/text/language"

	"github.com/gardar/mergepdf/pkg/ocr"
)

// Engine implements ocr.Engine. The underlying gRPC client is shared by all pages and is
// safe for concurrent use.
type Engine struct {
	// Logger defaults to slog.Default.
	Logger *slog.Logger

	cfg  Config
	proc processor
}

// NewEngine dials Document AI once; call Close when done.
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	proc, err := newClientProcessor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, proc: proc}, nil
}

func (e *Engine) Name() string { return "documentai" }

func (e *Engine) Close() error { return e.proc.Close() }

// Recognize returns the page as hOCR. Document AI does not render PDFs.
func (e *Engine) Recognize(ctx context.Context, req ocr.Request) (*ocr.Result, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("image is required")
	}

	pr := &documentaipb.ProcessRequest{
		Name: e.cfg.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  req.Image,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}
	if hints := languageHints(req.Language); len(hints) > 0 {
		pr.ProcessOptions = &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{LanguageHints: hints},
			},
		}
	}

	doc, err := e.proc.process(ctx, pr)
	if err != nil {
		return nil, err
	}
	if e.cfg.DebugDir != "" {
		if err := writeDebug(e.cfg.DebugDir, req.ID, doc); err != nil {
			e.logger().Warn("Could not write debug response.", "id", req.ID, "dir", e.cfg.DebugDir, "error", err)
		}
	}
	if doc == nil || len(doc.GetPages()) == 0 {
		return nil, ocr.ErrNoText
	}

	// Older processors omit the page dimension for raw images.
	for _, p := range doc.Pages {
		if p.Dimension == nil {
			if cfg, _, err := image.DecodeConfig(bytes.NewReader(req.Image)); err == nil {
				p.Dimension = &documentaipb.Document_Page_Dimension{
					Width:  float32(cfg.Width),
					Height: float32(cfg.Height),
					Unit:   "pixels",
				}
			}
		}
	}

	hdoc := DocumentFromProto(doc)
	return &ocr.Result{HOCR: &hdoc}, nil
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// languageHints maps a Tesseract language list such as "eng+deu" to BCP-47 base tags.
func languageHints(spec string) []string {
	var hints []string
	for _, code := range strings.Split(spec, "+") {
		code = strings.TrimSpace(code)
		if code == "" || code == "osd" {
			continue
		}
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		hints = append(hints, base.String())
	}
	return hints
}
