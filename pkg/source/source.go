// Package source fetches candidate bytes for items from local files, Cloud Storage and
// HTTP URLs.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gardar/mergepdf/pkg/normalize"
)

// DefaultMaxBytes caps a single fetched source.
const DefaultMaxBytes = 256 << 20

// Fetcher loads one reference into a blob. The blob ID is left for the caller to set.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (normalize.Blob, error)
}

// Router dispatches a reference to a fetcher by URL scheme. References without a scheme,
// and file:// URLs, go to the "file" fetcher.
type Router struct {
	Fetchers map[string]Fetcher
}

// Scheme returns the lowercase scheme of ref, or "file" when it has none.
func Scheme(ref string) string {
	scheme, _, ok := strings.Cut(ref, "://")
	if !ok || scheme == "" || strings.ContainsAny(scheme, `/\`) {
		return "file"
	}
	return strings.ToLower(scheme)
}

// Fetch loads ref with the fetcher registered for its scheme.
func (r *Router) Fetch(ctx context.Context, ref string) (normalize.Blob, error) {
	scheme := Scheme(ref)
	f, ok := r.Fetchers[scheme]
	if !ok {
		return normalize.Blob{}, fmt.Errorf("no fetcher for %q sources", scheme)
	}
	blob, err := f.Fetch(ctx, ref)
	if err != nil {
		return normalize.Blob{}, fmt.Errorf("fetch %s: %w", ref, err)
	}
	return blob, nil
}

// Candidates turns references into lazy candidates; each is fetched only if the ones before
// it fail to normalize.
func (r *Router) Candidates(refs []string) []normalize.Candidate {
	out := make([]normalize.Candidate, len(refs))
	for i, ref := range refs {
		out[i] = func(ctx context.Context) (normalize.Blob, error) { return r.Fetch(ctx, ref) }
	}
	return out
}

// readLimited reads all of rd, failing when it exceeds max bytes.
func readLimited(rd io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(rd, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("source exceeds %d bytes", max)
	}
	return data, nil
}
