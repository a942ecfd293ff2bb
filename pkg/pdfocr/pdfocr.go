// Package pdfocr turns a fitted page image into a single searchable PDF page.
//
// The image is sent to an OCR engine at the canvas resolution. Engines answer in one of two
// shapes and both end up as a page whose MediaBox equals the canvas:
//
// - PDF: the engine's own page (image plus invisible text) is measured, converted to pixels
// at the canvas dpi, and scaled down uniformly when it exceeds the canvas. Image and text
// are scaled together since the whole page is imported as one template.
// - hOCR: the page is composed here. The image is drawn at the origin and each word is
// written into a hidden layer at its bounding box.
//
// OCR never fails a page. When the engine errors the page is emitted with the image only and
// the degradation is logged.
package pdfocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/gardar/mergepdf/pkg/canvas"
	"github.com/gardar/mergepdf/pkg/ocr"
)

// ErrOCRDegraded marks a page emitted without a text layer because OCR failed.
// It is logged, never returned.
var ErrOCRDegraded = errors.New("ocr degraded: text layer omitted")

// Page is one normalized single-page PDF.
type Page struct {
	PDF []byte
	// Engine names the OCR engine that produced the text layer, empty for image-only pages.
	Engine string
	// Searchable reports whether the page carries a text layer.
	Searchable bool
	// Degraded is set when OCR was attempted and failed.
	Degraded bool
	// Scale is the factor applied to engine output to fit the canvas; 1 when none was needed.
	Scale float64
}

// Embedder produces canvas-sized searchable pages.
type Embedder struct {
	Canvas canvas.Spec
	// Engine may be nil, in which case pages are image-only.
	Engine    ocr.Engine
	Language  string
	LayerName string
	Font      FontConfig
	// Debug draws the text layer visibly in red with word boxes.
	Debug  bool
	Logger *slog.Logger
}

// NewEmbedder returns an Embedder with the default layer name and font.
func NewEmbedder(spec canvas.Spec, engine ocr.Engine, logger *slog.Logger) *Embedder {
	return &Embedder{
		Canvas:    spec,
		Engine:    engine,
		Language:  "eng",
		LayerName: DefaultLayerName,
		Font:      DefaultFont,
		Logger:    logger,
	}
}

func (e *Embedder) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Embed renders img as one page of exactly the canvas size. id correlates logs and engine
// requests. A cancelled ctx discards the OCR result and returns ctx.Err().
func (e *Embedder) Embed(ctx context.Context, id string, img image.Image) (*Page, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("embed %s: empty image", id)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	pngData := buf.Bytes()
	log := e.logger().With("item", id)

	if e.Engine == nil {
		return e.imageOnlyPage(pngData, img.Bounds(), false)
	}

	res, err := e.Engine.Recognize(ctx, ocr.Request{
		ID:       id,
		Image:    pngData,
		DPI:      e.Canvas.DPI(),
		Language: e.Language,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		log.Warn("OCR failed, emitting image-only page",
			"engine", e.Engine.Name(), "error", fmt.Errorf("%w: %v", ErrOCRDegraded, err))
		return e.imageOnlyPage(pngData, img.Bounds(), true)
	}

	switch {
	case len(res.PDF) > 0:
		page, err := e.reconcilePDF(res.PDF)
		if err != nil {
			log.Warn("Unreadable engine PDF, emitting image-only page",
				"engine", e.Engine.Name(), "error", fmt.Errorf("%w: %v", ErrOCRDegraded, err))
			return e.imageOnlyPage(pngData, img.Bounds(), true)
		}
		page.Engine = e.Engine.Name()
		if page.Scale < 1 {
			log.Info("Rescaled OCR page to canvas.", "scale", page.Scale)
		}
		return page, nil
	case res.HOCR != nil && len(res.HOCR.Pages) > 0:
		page, err := e.composeHOCR(pngData, img.Bounds(), res.HOCR.Pages[0], log)
		if err != nil {
			log.Warn("Could not compose text layer, emitting image-only page",
				"engine", e.Engine.Name(), "error", fmt.Errorf("%w: %v", ErrOCRDegraded, err))
			return e.imageOnlyPage(pngData, img.Bounds(), true)
		}
		page.Engine = e.Engine.Name()
		return page, nil
	default:
		log.Warn("OCR returned nothing, emitting image-only page",
			"engine", e.Engine.Name(), "error", fmt.Errorf("%w: %v", ErrOCRDegraded, ocr.ErrNoText))
		return e.imageOnlyPage(pngData, img.Bounds(), true)
	}
}
