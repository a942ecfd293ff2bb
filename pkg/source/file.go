package source

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gardar/mergepdf/pkg/normalize"
)

// File reads local paths. Relative paths are resolved against BaseDir.
type File struct {
	BaseDir  string
	MaxBytes int64
}

func (f *File) Fetch(_ context.Context, ref string) (normalize.Blob, error) {
	path, err := f.path(ref)
	if err != nil {
		return normalize.Blob{}, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return normalize.Blob{}, err
	}
	defer fh.Close()

	data, err := readLimited(fh, f.MaxBytes)
	if err != nil {
		return normalize.Blob{}, err
	}
	return normalize.Blob{Data: data, ContentType: contentType(path, data)}, nil
}

func (f *File) path(ref string) (string, error) {
	if strings.HasPrefix(strings.ToLower(ref), "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", err
		}
		ref = u.Path
	}
	if !filepath.IsAbs(ref) && f.BaseDir != "" {
		ref = filepath.Join(f.BaseDir, ref)
	}
	return ref, nil
}

// contentType guesses from the extension first, then sniffs the data.
func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
