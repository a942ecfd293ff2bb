// Package fit turns raw image bytes into an upright, opaque raster that fits the Letter canvas.
//
// Fitting runs as a value pipeline: decode (with EXIF orientation applied), flatten onto white,
// force portrait, scale down with a Lanczos filter, then center on a white canvas-sized page.
// Images are never enlarged.
package fit

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	// Extra decoders for archival scans beyond the stdlib jpeg/png/gif set.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gardar/mergepdf/pkg/canvas"
)

// ErrDecode reports image bytes that could not be decoded, even after repair attempts.
var ErrDecode = errors.New("unreadable image")

// Result is the output of a fit.
type Result struct {
	// Scaled is the oriented, flattened and scaled image. Both dimensions are within the canvas.
	Scaled *image.NRGBA
	// Page is Scaled centered on a white canvas of exactly the canvas pixel size.
	Page *image.NRGBA
	// Format is the decoder that accepted the bytes (jpeg, png, tiff, ...).
	Format  string
	Rotated bool
	Scale   float64
	// Repaired is set when the bytes were truncated and decoded best-effort.
	Repaired bool
}

// Fitter fits images to a canvas.
type Fitter struct {
	Canvas canvas.Spec
	Logger *slog.Logger
}

// New returns a Fitter for spec.
func New(spec canvas.Spec, logger *slog.Logger) *Fitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fitter{Canvas: spec, Logger: logger}
}

// Fit decodes data and fits it to the canvas.
func (f *Fitter) Fit(data []byte) (*Result, error) {
	img, format, repaired, err := decode(data)
	if err != nil {
		return nil, err
	}
	if repaired {
		f.logger().Warn("Decoded truncated image best-effort.", "format", format, "bytes", len(data))
	}
	res := f.FitImage(img)
	res.Format = format
	res.Repaired = repaired
	return res, nil
}

// FitImage fits an already decoded, already oriented image.
func (f *Fitter) FitImage(img image.Image) *Result {
	res := &Result{Scale: 1}
	out := flatten(img)

	if b := out.Bounds(); b.Dx() > b.Dy() {
		// Landscape sources rotate onto the portrait canvas rather than shrink.
		out = imaging.Rotate270(out)
		res.Rotated = true
	}

	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	scale := f.Canvas.FitScale(float64(w), float64(h))
	if scale < 1.0 {
		nw := scaledLength(w, scale)
		nh := scaledLength(h, scale)
		out = imaging.Resize(out, nw, nh, imaging.Lanczos)
		f.logger().Info("Scaled image.", "from", fmt.Sprintf("%dx%d", w, h), "to", fmt.Sprintf("%dx%d", nw, nh))
	}
	res.Scale = scale
	res.Scaled = out
	res.Page = f.center(out)
	return res
}

// scaledLength truncates like an integer conversion but absorbs float error, so the limiting
// side lands exactly on the canvas edge.
func scaledLength(n int, scale float64) int {
	return max(int(math.Floor(float64(n)*scale+1e-6)), 1)
}

func (f *Fitter) center(img *image.NRGBA) *image.NRGBA {
	bg := imaging.New(f.Canvas.WidthPx(), f.Canvas.HeightPx(), color.White)
	return imaging.PasteCenter(bg, img)
}

func (f *Fitter) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// flatten composites img over white using its own alpha, yielding a fully opaque image.
// Images without alpha are copied unchanged.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := imaging.New(b.Dx(), b.Dy(), color.White)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// repairers rebuild truncated data per format. Truncated TIFF, BMP and WebP stay undecodable.
var repairers = map[string]func([]byte) ([]byte, bool){
	"jpeg": repairJPEG,
	"png":  repairPNG,
}

// decode runs the registered decoders over data with EXIF orientation applied. Truncated JPEG
// and PNG data gets one repair attempt.
func decode(data []byte) (image.Image, string, bool, error) {
	if len(data) == 0 {
		return nil, "", false, fmt.Errorf("%w: empty input", ErrDecode)
	}
	_, format, cfgErr := image.DecodeConfig(bytes.NewReader(data))

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, format, false, nil
	}
	if repair := repairers[format]; cfgErr == nil && repair != nil {
		if fixed, ok := repair(data); ok {
			if img, rerr := imaging.Decode(bytes.NewReader(fixed), imaging.AutoOrientation(true)); rerr == nil {
				return img, format, true, nil
			}
		}
	}
	return nil, format, false, fmt.Errorf("%w: %v", ErrDecode, err)
}
