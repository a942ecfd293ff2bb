package canvas

import (
	"math"
	"testing"
)

func TestNewDerivesLetterGeometry(t *testing.T) {
	tests := []struct {
		dpi              int
		wantW, wantH     int
		wantWPt, wantHPt float64
	}{
		{dpi: 72, wantW: 612, wantH: 792, wantWPt: 612, wantHPt: 792},
		{dpi: 150, wantW: 1275, wantH: 1650, wantWPt: 612, wantHPt: 792},
		{dpi: 300, wantW: 2550, wantH: 3300, wantWPt: 612, wantHPt: 792},
	}
	for _, tt := range tests {
		s, err := New(tt.dpi)
		if err != nil {
			t.Fatalf("New(%d): %v", tt.dpi, err)
		}
		if s.WidthPx() != tt.wantW || s.HeightPx() != tt.wantH {
			t.Fatalf("dpi %d: got %dx%d px, want %dx%d", tt.dpi, s.WidthPx(), s.HeightPx(), tt.wantW, tt.wantH)
		}
		if math.Abs(s.WidthPt()-tt.wantWPt) > 0.01 || math.Abs(s.HeightPt()-tt.wantHPt) > 0.01 {
			t.Fatalf("dpi %d: got %.2fx%.2f pt", tt.dpi, s.WidthPt(), s.HeightPt())
		}
	}
}

func TestNewRejectsOutOfRangeDPI(t *testing.T) {
	for _, dpi := range []int{0, -1, MinDPI - 1, MaxDPI + 1} {
		if _, err := New(dpi); err == nil {
			t.Fatalf("expected error for dpi %d", dpi)
		}
	}
}

func TestFitScaleNeverUpscales(t *testing.T) {
	s := MustNew(72)
	if got := s.FitScale(100, 100); got != 1 {
		t.Fatalf("small box: got scale %v, want 1", got)
	}
	if got := s.FitScale(1224, 792); got != 0.5 {
		t.Fatalf("double-width box: got scale %v, want 0.5", got)
	}
	if got := s.FitScale(612, 1584); got != 0.5 {
		t.Fatalf("double-height box: got scale %v, want 0.5", got)
	}
}

func TestPointPixelRoundTrip(t *testing.T) {
	s := MustNew(200)
	if got := s.PtToPx(s.PxToPt(1234)); math.Abs(got-1234) > 1e-9 {
		t.Fatalf("round trip drifted: %v", got)
	}
}
