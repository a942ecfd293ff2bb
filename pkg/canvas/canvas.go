// Package canvas describes the fixed target page every normalized page is fitted into.
//
// The canvas is US Letter (8.5 x 11 inches) rendered at a configured resolution. Pixel
// dimensions are used by the image fitting stage; point dimensions (1/72 inch) are used when
// the page is written to PDF.
package canvas

import "fmt"

const (
	// LetterWidthIn is the width of a US Letter page in inches.
	LetterWidthIn = 8.5
	// LetterHeightIn is the height of a US Letter page in inches.
	LetterHeightIn = 11.0
	// PointsPerInch is the PDF user-space unit density.
	PointsPerInch = 72.0

	// MinDPI is the lowest accepted canvas resolution.
	MinDPI = 36
	// MaxDPI is the highest accepted canvas resolution.
	MaxDPI = 1200
)

// Spec is the immutable canvas geometry. Construct it with New.
type Spec struct {
	dpi      int
	widthPx  int
	heightPx int
}

// New derives the Letter canvas for dpi.
func New(dpi int) (Spec, error) {
	if dpi < MinDPI || dpi > MaxDPI {
		return Spec{}, fmt.Errorf("dpi %d out of range [%d, %d]", dpi, MinDPI, MaxDPI)
	}
	return Spec{
		dpi:      dpi,
		widthPx:  int(LetterWidthIn * float64(dpi)),
		heightPx: int(LetterHeightIn * float64(dpi)),
	}, nil
}

// MustNew is New for values known to be valid, such as constants in tests.
func MustNew(dpi int) Spec {
	s, err := New(dpi)
	if err != nil {
		panic(err)
	}
	return s
}

// DPI returns the canvas resolution in pixels per inch.
func (s Spec) DPI() int { return s.dpi }

// WidthPx returns the canvas width in pixels, truncated.
func (s Spec) WidthPx() int { return s.widthPx }

// HeightPx returns the canvas height in pixels, truncated.
func (s Spec) HeightPx() int { return s.heightPx }

// WidthPt returns the canvas width in PDF points.
func (s Spec) WidthPt() float64 { return s.PxToPt(float64(s.widthPx)) }

// HeightPt returns the canvas height in PDF points.
func (s Spec) HeightPt() float64 { return s.PxToPt(float64(s.heightPx)) }

// PxToPt converts a pixel length at the canvas resolution to points.
func (s Spec) PxToPt(px float64) float64 {
	return px * PointsPerInch / float64(s.dpi)
}

// PtToPx converts a length in points to pixels at the canvas resolution.
func (s Spec) PtToPx(pt float64) float64 {
	return pt * float64(s.dpi) / PointsPerInch
}

// FitScale returns the uniform factor that makes a w x h pixel box fit the canvas, capped at 1
// so content is never enlarged.
func (s Spec) FitScale(w, h float64) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return min(float64(s.widthPx)/w, float64(s.heightPx)/h, 1.0)
}

func (s Spec) String() string {
	return fmt.Sprintf("letter %dx%dpx @ %ddpi", s.widthPx, s.heightPx, s.dpi)
}
