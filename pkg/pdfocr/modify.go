package pdfocr

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// sizeTolerance is how far, in points, an engine page may be from the canvas and still be
// passed through untouched.
const sizeTolerance = 0.5

// reconcilePDF brings an engine-emitted page to the canvas size. The page is measured in
// points, converted to pixels at the canvas dpi and, when larger than the canvas, imported
// as a template and scaled uniformly onto a blank canvas page at the origin.
//
// An error means the engine output could not be read at all. When only the rescale fails,
// the unscaled engine output is returned.
func (e *Embedder) reconcilePDF(data []byte) (*Page, error) {
	dims, err := api.PageDims(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read engine page size: %w", err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("engine PDF has no pages")
	}
	wPt, hPt := dims[0].Width, dims[0].Height

	if math.Abs(wPt-e.Canvas.WidthPt()) <= sizeTolerance && math.Abs(hPt-e.Canvas.HeightPt()) <= sizeTolerance {
		return &Page{PDF: data, Searchable: true, Scale: 1}, nil
	}

	scale := e.Canvas.FitScale(e.Canvas.PtToPx(wPt), e.Canvas.PtToPx(hPt))
	out, err := e.placeTemplate(data, wPt*scale, hPt*scale)
	if err != nil {
		e.logger().Warn("Rescale of OCR page failed, keeping engine output",
			"width_pt", wPt, "height_pt", hPt, "error", err)
		return &Page{PDF: data, Searchable: true, Scale: 1}, nil
	}
	return &Page{PDF: out, Searchable: true, Scale: scale}, nil
}

// placeTemplate imports page 1 of data and draws it at the origin of a canvas page with the
// given size in points. gofpdi panics on malformed input; that is turned into an error.
func (e *Embedder) placeTemplate(data []byte, w, h float64) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("import engine page: %v", r)
		}
	}()

	pdf := e.newCanvasPDF()
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(data))

	tpl := importer.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
	importer.UseImportedTemplate(pdf, tpl, 0, 0, w, h)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
