//go:build gosseract

// Package gosseract is an in-process OCR engine backed by libtesseract through cgo.
// Build with -tags gosseract; the tesseract headers and traineddata must be installed.
package gosseract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/gardar/mergepdf/pkg/hocr"
	"github.com/gardar/mergepdf/pkg/ocr"
)

// Engine renders hOCR with a fresh client per page. gosseract clients are not safe for
// concurrent use, so pages never share one.
type Engine struct {
	clientFactory func() *gosseract.Client
	// Variables are passed to SetVariable on every client, e.g. tessedit_char_blacklist.
	Variables map[string]string
}

func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "gosseract" }

// Recognize always produces hOCR; libtesseract's PDF renderer writes to files only.
func (e *Engine) Recognize(ctx context.Context, req ocr.Request) (*ocr.Result, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("image is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(req.Image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if req.Language != "" {
		if err := c.SetLanguage(strings.Split(req.Language, "+")...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if req.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(req.DPI)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range e.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	out, err := c.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("recognize %s: %w", req.ID, err)
	}
	if strings.TrimSpace(out) == "" {
		return nil, ocr.ErrNoText
	}
	doc, err := hocr.Parse([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("parse gosseract hocr: %w", err)
	}
	return &ocr.Result{HOCR: &doc}, nil
}
