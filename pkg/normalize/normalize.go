// Package normalize turns source blobs into normalized PDFs on disk and resolves items
// to the first candidate that normalizes.
package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/gardar/mergepdf/pkg/fit"
	"github.com/gardar/mergepdf/pkg/pdfocr"
)

// ErrNormalization wraps every reason a single blob could not be normalized.
var ErrNormalization = errors.New("normalization failed")

var pdfSignature = []byte("%PDF")

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Blob is one candidate source for an item.
type Blob struct {
	// ID is the item key; it names the intermediate file and correlates logs.
	ID          string
	Data        []byte
	ContentType string
}

// Normalizer writes one PDF per blob into Dir. PDFs pass through verbatim; everything else
// goes through the image pipeline.
type Normalizer struct {
	Fitter   *fit.Fitter
	Embedder *pdfocr.Embedder
	// Dir is the run's scratch directory.
	Dir    string
	Logger *slog.Logger
}

func (n *Normalizer) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

// Normalize stores the blob as file_<id>.pdf and returns its path. Every failure, including
// unsupported content, is returned wrapped in ErrNormalization and never panics the caller.
func (n *Normalizer) Normalize(ctx context.Context, blob Blob) (string, error) {
	log := n.logger().With("item", blob.ID, "content_type", blob.ContentType, "bytes", len(blob.Data))
	mediaType := parseMediaType(blob.ContentType)

	var (
		data []byte
		err  error
	)
	switch {
	case mediaType == "application/pdf" || bytes.HasPrefix(blob.Data, pdfSignature):
		data = blob.Data
		n.logPassthrough(log, data)
	case strings.HasPrefix(mediaType, "image/"):
		data, err = n.fromImage(ctx, blob, log)
	default:
		log.Info("Unrecognized content type, trying as image.")
		data, err = n.fromImage(ctx, blob, log)
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn("Could not normalize source", "error", err)
		return "", fmt.Errorf("%w: item %s: %w", ErrNormalization, blob.ID, err)
	}

	path, err := n.write(blob.ID, data)
	if err != nil {
		log.Error("Could not store normalized document", "error", err)
		return "", fmt.Errorf("%w: item %s: %w", ErrNormalization, blob.ID, err)
	}
	log.Info("Normalized document stored.", "path", path)
	return path, nil
}

func (n *Normalizer) fromImage(ctx context.Context, blob Blob, log *slog.Logger) ([]byte, error) {
	if n.Fitter == nil || n.Embedder == nil {
		return nil, errors.New("image pipeline not configured")
	}
	fitted, err := n.Fitter.Fit(blob.Data)
	if err != nil {
		return nil, err
	}
	page, err := n.Embedder.Embed(ctx, blob.ID, fitted.Page)
	if err != nil {
		return nil, err
	}
	log.Info("Image normalized.",
		"format", fitted.Format,
		"rotated", fitted.Rotated,
		"scale", fitted.Scale,
		"searchable", page.Searchable,
		"ocr_degraded", page.Degraded)
	return page.PDF, nil
}

func (n *Normalizer) logPassthrough(log *slog.Logger, data []byte) {
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	layers, err := pdfocr.CheckOCRLayer(data, pdfocr.DefaultLayerName)
	if err != nil {
		log.Debug("PDF passed through.", "error", err)
		return
	}
	log.Debug("PDF passed through.", "has_ocr_layer", layers.HasOCRLayer(), "layers", layers.Layers)
}

// write stores data through a temp file and rename; the final name never holds a partial file.
func (n *Normalizer) write(id string, data []byte) (string, error) {
	if n.Dir == "" {
		return "", errors.New("no scratch directory")
	}
	path := filepath.Join(n.Dir, FileName(id))
	tmp, err := os.CreateTemp(n.Dir, ".normalize-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// FileName is the intermediate file name for an item id. IDs that are already safe file name
// parts map to file_<id>.pdf. Any other ID is cleaned and gets a hash of the raw ID after a
// '~', which cleaned names never contain, so distinct IDs never share a file.
func FileName(id string) string {
	safe := strings.Trim(unsafeName.ReplaceAllString(id, "_"), "._")
	if safe != "" && safe == id {
		return "file_" + safe + ".pdf"
	}
	if safe == "" {
		safe = "item"
	}
	return fmt.Sprintf("file_%s~%016x.pdf", safe, xxhash.Sum64String(id))
}

// parseMediaType lowercases the type and drops parameters such as charset.
func parseMediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
