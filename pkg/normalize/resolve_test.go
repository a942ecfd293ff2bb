package normalize

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func TestResolveFirstSuccess(t *testing.T) {
	good := pdfBytes(t, 2)
	tests := []struct {
		name  string
		blobs []Blob
		want  []byte
	}{
		{
			name: "bad bad good",
			blobs: []Blob{
				{Data: []byte("junk"), ContentType: "image/png"},
				{Data: []byte{0xff, 0xd8, 0xff}, ContentType: "image/jpeg"},
				{Data: good, ContentType: "application/pdf"},
			},
			want: good,
		},
		{
			name: "first good wins",
			blobs: []Blob{
				{Data: good, ContentType: "application/pdf"},
				{Data: pdfBytes(t, 5), ContentType: "application/pdf"},
			},
			want: good,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newNormalizer(t)
			r := &Resolver{Normalizer: n, Logger: quietLogger()}
			path, err := r.Resolve(context.Background(), "12", tt.blobs)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if filepath.Base(path) != "file_12.pdf" {
				t.Fatalf("path = %q", path)
			}
			if !bytes.Equal(readFile(t, path), tt.want) {
				t.Fatal("resolved document is not the expected candidate")
			}
		})
	}
}

func TestResolveAllFail(t *testing.T) {
	r := &Resolver{Normalizer: newNormalizer(t), Logger: quietLogger()}
	bad := []Blob{
		{Data: []byte("junk"), ContentType: "image/png"},
		{Data: []byte("more junk"), ContentType: "text/plain"},
	}
	_, err := r.Resolve(context.Background(), "3", bad)
	if !errors.Is(err, ErrItemUnresolved) || !errors.Is(err, ErrNormalization) {
		t.Fatalf("error = %v, want ErrItemUnresolved wrapping ErrNormalization", err)
	}

	if _, err := r.Resolve(context.Background(), "4", nil); !errors.Is(err, ErrItemUnresolved) {
		t.Fatalf("error = %v, want ErrItemUnresolved for no candidates", err)
	}
}

func TestResolveLazyStopsAtFirstSuccess(t *testing.T) {
	r := &Resolver{Normalizer: newNormalizer(t), Logger: quietLogger()}
	doc := pdfBytes(t, 1)
	var fetched []int
	candidate := func(i int, blob Blob, err error) Candidate {
		return func(context.Context) (Blob, error) {
			fetched = append(fetched, i)
			return blob, err
		}
	}

	path, err := r.ResolveLazy(context.Background(), "5", []Candidate{
		candidate(0, Blob{}, errors.New("404 not found")),
		candidate(1, Blob{Data: doc}, nil),
		candidate(2, Blob{Data: doc}, nil),
	})
	if err != nil {
		t.Fatalf("ResolveLazy: %v", err)
	}
	if path == "" {
		t.Fatal("empty path")
	}
	if len(fetched) != 2 || fetched[0] != 0 || fetched[1] != 1 {
		t.Fatalf("fetched = %v, want [0 1]", fetched)
	}
}

func TestResolveCancelled(t *testing.T) {
	r := &Resolver{Normalizer: newNormalizer(t), Logger: quietLogger()}
	ctx, cancel := context.WithCancel(context.Background())

	_, err := r.ResolveLazy(ctx, "6", []Candidate{
		func(context.Context) (Blob, error) {
			cancel()
			return Blob{}, context.Canceled
		},
		func(context.Context) (Blob, error) {
			t.Fatal("candidate fetched after cancel")
			return Blob{}, nil
		},
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrItemUnresolved) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

// A truncated scan followed by a good PDF resolves to the PDF with its pages intact.
func TestResolveFallsBackFromCorruptImage(t *testing.T) {
	png := pngBytes(t, 120, 80)
	truncated := png[:len(png)/2]
	doc := pdfBytes(t, 3)

	r := &Resolver{Normalizer: newNormalizer(t), Logger: quietLogger()}
	path, err := r.Resolve(context.Background(), "8", []Blob{
		{Data: truncated, ContentType: "image/png"},
		{Data: doc, ContentType: "application/pdf"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	n, err := api.PageCount(bytes.NewReader(readFile(t, path)), model.NewDefaultConfiguration())
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if n != 3 {
		t.Fatalf("page count = %d, want 3", n)
	}
}
