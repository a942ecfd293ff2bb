// Package merge concatenates normalized PDFs into one document.
package merge

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Error reports an input that could not be read or parsed. It aborts the whole merge.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("merge: %v", e.Err)
	}
	return fmt.Sprintf("merge %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Merge reads every input fully, validates it, and returns one PDF holding all pages in input
// order.
func Merge(paths []string) ([]byte, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("merge: no input documents")
	}

	docs := make([][]byte, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Path: path, Err: err}
		}
		// pdfcpu does not report which input of a merge was bad.
		if err := api.Validate(bytes.NewReader(data), model.NewDefaultConfiguration()); err != nil {
			return nil, &Error{Path: path, Err: err}
		}
		docs[i] = data
	}
	if len(docs) == 1 {
		return docs[0], nil
	}

	readers := make([]io.ReadSeeker, len(docs))
	for i, data := range docs {
		readers[i] = bytes.NewReader(data)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, model.NewDefaultConfiguration()); err != nil {
		return nil, &Error{Err: err}
	}
	return out.Bytes(), nil
}

// ToFile merges paths into out, writing through a temp file in the same directory.
func ToFile(paths []string, out string) error {
	data, err := Merge(paths)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(out), ".merge-*")
	if err != nil {
		return fmt.Errorf("create merge output: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write merge output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close merge output: %w", err)
	}
	return os.Rename(tmp.Name(), out)
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}
