package pdfocr

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"unicode/utf8"

	"codeberg.org/go-pdf/fpdf"

	"github.com/gardar/mergepdf/pkg/hocr"
)

const pageImageName = "page"

// newCanvasPDF starts a document with one blank canvas-sized page.
func (e *Embedder) newCanvasPDF() *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCreator("mergepdf", true)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: e.Canvas.WidthPt(), Ht: e.Canvas.HeightPt()})
	return pdf
}

// placeImage draws the PNG at the origin, shrunk uniformly if it exceeds the canvas,
// and returns the drawn size in points.
func (e *Embedder) placeImage(pdf *fpdf.Fpdf, pngData []byte, bounds image.Rectangle) (w, h, scale float64) {
	px, py := float64(bounds.Dx()), float64(bounds.Dy())
	scale = e.Canvas.FitScale(px, py)
	w = e.Canvas.PxToPt(px) * scale
	h = e.Canvas.PxToPt(py) * scale

	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(pageImageName, opts, bytes.NewReader(pngData))
	pdf.ImageOptions(pageImageName, 0, 0, w, h, false, opts, 0, "")
	return w, h, scale
}

// imageOnlyPage builds the fallback page: the image with no text layer.
func (e *Embedder) imageOnlyPage(pngData []byte, bounds image.Rectangle, degraded bool) (*Page, error) {
	pdf := e.newCanvasPDF()
	_, _, scale := e.placeImage(pdf, pngData, bounds)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return &Page{PDF: buf.Bytes(), Degraded: degraded, Scale: scale}, nil
}

// composeHOCR builds a page from the image and the engine's word boxes. Boxes are in the
// pixel space of the hOCR page and are mapped onto the drawn image.
func (e *Embedder) composeHOCR(pngData []byte, bounds image.Rectangle, page hocr.Page, log *slog.Logger) (*Page, error) {
	pdf := e.newCanvasPDF()
	w, h, scale := e.placeImage(pdf, pngData, bounds)

	hocrW, hocrH := page.BBox.Width(), page.BBox.Height()
	if page.BBox.Empty() {
		hocrW, hocrH = float64(bounds.Dx()), float64(bounds.Dy())
	}
	transform := func(x, y float64) (float64, float64) {
		return normalizeCoords(x-page.BBox.X1, y-page.BBox.Y1, hocrW, hocrH, w, h)
	}

	words := page.Words()
	skipped := drawOCRLayer(pdf, words, e.Debug, e.layerName(), transform, e.font())
	if skipped > 0 {
		log.Warn("Words not representable in the layer font were skipped.",
			"skipped", skipped, "words", len(words))
	}
	log.Debug("Drew text layer.", "lines", len(page.Lines), "words", len(words), "chars", utf8.RuneCountInString(page.Text()))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return &Page{
		PDF:        buf.Bytes(),
		Searchable: len(words) > skipped,
		Scale:      scale,
	}, nil
}

func (e *Embedder) layerName() string {
	if e.LayerName == "" {
		return DefaultLayerName
	}
	return e.LayerName
}

func (e *Embedder) font() FontConfig {
	if e.Font.Name == "" {
		return DefaultFont
	}
	return e.Font
}
