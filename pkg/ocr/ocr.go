// Package ocr defines the contract between the text layer embedder and OCR engines, and
// provides the default engine: the tesseract command line tool.
package ocr

import (
	"context"
	"errors"

	"github.com/gardar/mergepdf/pkg/hocr"
)

// Output selects what an engine emits for a page.
type Output string

const (
	// OutputPDF asks for a ready-made page: the image plus an invisible text layer.
	OutputPDF Output = "pdf"
	// OutputHOCR asks for positioned words only; the caller composes the page.
	OutputHOCR Output = "hocr"
)

// ErrNoText is returned by engines that ran successfully but produced nothing usable.
var ErrNoText = errors.New("engine produced no output")

// Request is one page image submitted for recognition.
type Request struct {
	// ID correlates the request with the item being normalized; used in logs and temp names.
	ID string
	// Image is a PNG encoding of the page.
	Image []byte
	// DPI is the resolution the image was rendered at. Engines derive physical page size from it.
	DPI int
	// Language is a Tesseract-style language list such as "eng" or "eng+deu".
	Language string
}

// Result carries exactly one of PDF or HOCR.
type Result struct {
	PDF  []byte
	HOCR *hocr.Document
}

// Engine recognizes text on a page image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, req Request) (*Result, error)
}
