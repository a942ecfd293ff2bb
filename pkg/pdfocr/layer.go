package pdfocr

import (
	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/gardar/mergepdf/pkg/hocr"
)

// textLayer draws recognized words into one optional content group of the current page.
type textLayer struct {
	pdf       *fpdf.Fpdf
	font      FontConfig
	transform func(x, y float64) (float64, float64)
	debug     bool
}

// drawOCRLayer draws words into the layer called name and returns how many were skipped
// because they are empty or the core font cannot encode them. Outside debug mode the words
// are fully transparent.
func drawOCRLayer(pdf *fpdf.Fpdf, words []hocr.Word, debug bool, name string,
	transform func(x, y float64) (float64, float64), font FontConfig) int {

	l := textLayer{pdf: pdf, font: font, transform: transform, debug: debug}

	pdf.BeginLayer(pdf.AddLayer(name, true))
	defer pdf.EndLayer()

	pdf.SetFont(font.Name, font.Style, font.Size)
	if debug {
		pdf.SetTextColor(255, 0, 0)
		pdf.SetDrawColor(255, 0, 0)
	} else {
		pdf.SetAlpha(0, "Normal")
		defer pdf.SetAlpha(1, "Normal")
	}

	skipped := 0
	for _, w := range words {
		if !l.draw(w) {
			skipped++
		}
	}
	return skipped
}

// draw writes one word with its font size stretched so the text spans the word box.
func (l textLayer) draw(w hocr.Word) bool {
	if w.Text == "" || w.BBox.Empty() {
		return false
	}
	// Core fonts are ISO-8859-1.
	text, err := charmap.ISO8859_1.NewEncoder().String(w.Text)
	if err != nil {
		return false
	}

	x1, y1 := l.transform(w.BBox.X1, w.BBox.Y1)
	x2, y2 := l.transform(w.BBox.X2, w.BBox.Y2)
	boxW := x2 - x1

	size := l.font.Size
	if natural := l.pdf.GetStringWidth(text); natural > 0 {
		size *= boxW / natural
	}
	l.pdf.SetFontSize(size)
	l.pdf.Text(x1, y1+size*l.font.AscentRatio, text)
	l.pdf.SetFontSize(l.font.Size)

	if l.debug {
		l.pdf.Rect(x1, y1, boxW, y2-y1, "D")
	}
	return true
}
