package fit

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gardar/mergepdf/pkg/canvas"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// noise yields incompressible content so most of an encoded JPEG is scan data.
func noise(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestFitDimensions(t *testing.T) {
	f := New(canvas.MustNew(72), nil)

	tests := []struct {
		name        string
		w, h        int
		wantW       int
		wantH       int
		wantRotated bool
		// wantMark is where the source's top-left pixel ends up in Scaled, for unscaled cases.
		wantMark *image.Point
	}{
		{name: "small portrait kept as is", w: 100, h: 200, wantW: 100, wantH: 200, wantMark: &image.Point{0, 0}},
		{name: "exact canvas", w: 612, h: 792, wantW: 612, wantH: 792, wantMark: &image.Point{0, 0}},
		{name: "large portrait scaled", w: 1224, h: 1584, wantW: 612, wantH: 792},
		{name: "small landscape rotated clockwise", w: 300, h: 100, wantW: 100, wantH: 300, wantRotated: true, wantMark: &image.Point{99, 0}},
		{name: "large landscape rotated then scaled", w: 2000, h: 1000, wantW: 396, wantH: 792, wantRotated: true},
		{name: "square untouched", w: 500, h: 500, wantW: 500, wantH: 500, wantMark: &image.Point{0, 0}},
	}
	red := color.NRGBA{R: 255, A: 255}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := solid(tt.w, tt.h, color.Black)
			src.Set(0, 0, red)
			res, err := f.Fit(encodePNG(t, src))
			if err != nil {
				t.Fatalf("Fit: %v", err)
			}
			if tt.wantMark != nil {
				if got := res.Scaled.NRGBAAt(tt.wantMark.X, tt.wantMark.Y); got != red {
					t.Fatalf("pixel at %v = %v, want the red top-left marker", *tt.wantMark, got)
				}
			}
			b := res.Scaled.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Fatalf("scaled to %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
			if b.Dx() > b.Dy() {
				t.Fatalf("output is landscape: %dx%d", b.Dx(), b.Dy())
			}
			if res.Rotated != tt.wantRotated {
				t.Fatalf("rotated = %v, want %v", res.Rotated, tt.wantRotated)
			}
			pb := res.Page.Bounds()
			if pb.Dx() != 612 || pb.Dy() != 792 {
				t.Fatalf("page is %dx%d, want canvas 612x792", pb.Dx(), pb.Dy())
			}
			if res.Format != "png" {
				t.Fatalf("format = %q", res.Format)
			}
		})
	}
}

func TestFitCentersOnWhite(t *testing.T) {
	f := New(canvas.MustNew(72), nil)
	res, err := f.Fit(encodePNG(t, solid(100, 100, color.Black)))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := res.Page.NRGBAAt(0, 0); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Fatalf("corner is %v, want white", got)
	}
	// (612-100)/2 = 256, (792-100)/2 = 346
	if got := res.Page.NRGBAAt(256+50, 346+50); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Fatalf("center is %v, want black", got)
	}
	if got := res.Page.NRGBAAt(255, 346+50); got.R != 255 {
		t.Fatalf("pixel left of the image is %v, want white", got)
	}
}

func TestFitFlattensAlphaOntoWhite(t *testing.T) {
	f := New(canvas.MustNew(72), nil)
	img := solid(40, 40, color.NRGBA{0, 0, 0, 0})
	img.SetNRGBA(10, 10, color.NRGBA{255, 0, 0, 255})

	res, err := f.Fit(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := res.Scaled.NRGBAAt(0, 0); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Fatalf("transparent pixel became %v, want opaque white", got)
	}
	if got := res.Scaled.NRGBAAt(10, 10); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Fatalf("opaque pixel became %v", got)
	}
	for i := 3; i < len(res.Page.Pix); i += 4 {
		if res.Page.Pix[i] != 255 {
			t.Fatalf("page has a non-opaque pixel at byte %d", i)
		}
	}
}

func TestFitPalettedImage(t *testing.T) {
	f := New(canvas.MustNew(72), nil)
	pal := image.NewPaletted(image.Rect(0, 0, 20, 30), color.Palette{color.Transparent, color.Black})
	pal.SetColorIndex(5, 5, 1)

	res, err := f.Fit(encodePNG(t, pal))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := res.Scaled.NRGBAAt(0, 0); got.A != 255 || got.R != 255 {
		t.Fatalf("transparent palette entry became %v", got)
	}
	if got := res.Scaled.NRGBAAt(5, 5); got.R != 0 || got.A != 255 {
		t.Fatalf("black palette entry became %v", got)
	}
}

func TestFitRejectsGarbage(t *testing.T) {
	f := New(canvas.MustNew(72), nil)
	for _, data := range [][]byte{nil, []byte("definitely not an image"), {0x00, 0x01, 0x02}} {
		if _, err := f.Fit(data); !errors.Is(err, ErrDecode) {
			t.Fatalf("Fit(%q) error = %v, want ErrDecode", data, err)
		}
	}
}

func TestFitRepairsTruncatedJPEG(t *testing.T) {
	f := New(canvas.MustNew(72), nil)
	full := encodeJPEG(t, noise(160, 240))
	truncated := full[:len(full)*2/3]

	if _, err := jpeg.Decode(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected the stdlib decoder to reject truncated data")
	}
	res, err := f.Fit(truncated)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !res.Repaired {
		t.Fatal("expected Repaired to be set")
	}
	if b := res.Scaled.Bounds(); b.Dx() != 160 || b.Dy() != 240 {
		t.Fatalf("repaired image is %dx%d, want 160x240", b.Dx(), b.Dy())
	}
}

func TestFitRepairsTruncatedPNG(t *testing.T) {
	f := New(canvas.MustNew(72), nil)
	src := noise(400, 600)
	full := encodePNG(t, src)
	truncated := full[:len(full)*3/4]

	if _, err := png.Decode(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected the stdlib decoder to reject truncated data")
	}
	res, err := f.Fit(truncated)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !res.Repaired || res.Format != "png" {
		t.Fatalf("repaired = %v, format = %q", res.Repaired, res.Format)
	}
	if b := res.Scaled.Bounds(); b.Dx() != 400 || b.Dy() != 600 {
		t.Fatalf("repaired image is %dx%d, want 400x600", b.Dx(), b.Dy())
	}
	if got, want := res.Scaled.NRGBAAt(0, 0), src.NRGBAAt(0, 0); got != want {
		t.Fatalf("first pixel = %v, want %v", got, want)
	}
	if got := res.Scaled.NRGBAAt(0, 599); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Fatalf("missing rows should be white, got %v", got)
	}
}

func TestRepairPNGLeavesIntactDataAlone(t *testing.T) {
	if _, ok := repairPNG(encodePNG(t, noise(20, 20))); ok {
		t.Fatal("intact PNG was rewritten")
	}
	if _, ok := repairPNG([]byte("not a png")); ok {
		t.Fatal("non-PNG data was accepted")
	}
}

// Truncated TIFF and BMP have no repair path and are reported as unreadable.
func TestFitTruncatedWithoutRepair(t *testing.T) {
	f := New(canvas.MustNew(72), nil)
	tests := []struct {
		name   string
		encode func(io.Writer, image.Image) error
	}{
		{name: "tiff", encode: func(w io.Writer, m image.Image) error { return tiff.Encode(w, m, nil) }},
		{name: "bmp", encode: bmp.Encode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.encode(&buf, noise(64, 64)); err != nil {
				t.Fatalf("encode: %v", err)
			}
			truncated := buf.Bytes()[:buf.Len()/2]
			if _, err := f.Fit(truncated); !errors.Is(err, ErrDecode) {
				t.Fatalf("error = %v, want ErrDecode", err)
			}
		})
	}
}

// withOrientation inserts a minimal big-endian EXIF APP1 segment carrying orientation o.
func withOrientation(jpg []byte, o byte) []byte {
	app1 := []byte{
		0xFF, 0xE1, 0x00, 0x22, // APP1, length 34
		'E', 'x', 'i', 'f', 0x00, 0x00,
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08, // TIFF header, IFD0 at 8
		0x00, 0x01, // one entry
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, o, 0x00, 0x00, // Orientation SHORT
		0x00, 0x00, 0x00, 0x00, // no next IFD
	}
	out := append([]byte{}, jpg[:2]...)
	out = append(out, app1...)
	return append(out, jpg[2:]...)
}

func TestFitAppliesEXIFOrientation(t *testing.T) {
	f := New(canvas.MustNew(72), nil)
	// Stored landscape, tagged "rotate 90 CW to display": upright it is portrait.
	data := withOrientation(encodeJPEG(t, solid(80, 40, color.Black)), 6)

	res, err := f.Fit(data)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Rotated {
		t.Fatal("orientation tag should have made the image portrait before the portrait check")
	}
	if b := res.Scaled.Bounds(); b.Dx() != 40 || b.Dy() != 80 {
		t.Fatalf("oriented image is %dx%d, want 40x80", b.Dx(), b.Dy())
	}
}

func TestFitImageHigherDPI(t *testing.T) {
	f := New(canvas.MustNew(100), nil)
	res := f.FitImage(solid(1700, 2200, color.White))
	if b := res.Scaled.Bounds(); b.Dx() != 850 || b.Dy() != 1100 {
		t.Fatalf("scaled to %dx%d, want 850x1100", b.Dx(), b.Dy())
	}
	if b := res.Page.Bounds(); b.Dx() != 850 || b.Dy() != 1100 {
		t.Fatalf("page is %dx%d, want 850x1100", b.Dx(), b.Dy())
	}
	if res.Scale != 0.5 {
		t.Fatalf("scale = %v", res.Scale)
	}
}
