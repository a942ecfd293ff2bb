// Package pipeline runs one merge request: every item is resolved to a normalized PDF in a
// private scratch directory, then the results are merged in item order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gardar/mergepdf/pkg/fit"
	"github.com/gardar/mergepdf/pkg/merge"
	"github.com/gardar/mergepdf/pkg/normalize"
	"github.com/gardar/mergepdf/pkg/pdfocr"
)

// ErrNoDocuments is returned when not a single item could be normalized.
var ErrNoDocuments = errors.New("could not convert any files to PDF")

// MergedName is the file name of the merged document inside the run directory.
const MergedName = "merged.pdf"

// Item is one logical entry of the output, with its candidate sources in preference order.
type Item struct {
	ID         string
	Candidates []normalize.Candidate
}

// BlobItem builds an Item from pre-fetched blobs.
func BlobItem(id string, blobs ...normalize.Blob) Item {
	item := Item{ID: id}
	for _, b := range blobs {
		item.Candidates = append(item.Candidates, func(context.Context) (normalize.Blob, error) { return b, nil })
	}
	return item
}

// Pipeline holds the per-process collaborators; each Run gets its own scratch directory.
type Pipeline struct {
	Fitter   *fit.Fitter
	Embedder *pdfocr.Embedder
	// ScratchRoot is shared by concurrent runs; empty means the OS temp dir.
	ScratchRoot string
	// Workers bounds how many items are normalized at once.
	Workers int
	// KeepFiles leaves the run directory in place after Close.
	KeepFiles bool
	Logger    *slog.Logger
}

// Result is the outcome of a run. Close removes the run directory.
type Result struct {
	PDF  []byte
	Path string
	Dir  string
	// Resolved and Unresolved list item IDs in item order.
	Resolved   []string
	Unresolved []string
	// Duplicates lists repeated item IDs that were skipped in favour of their first occurrence.
	Duplicates []string

	keep bool
}

// Close releases the run directory unless files are kept for debugging.
func (r *Result) Close() error {
	if r == nil || r.keep || r.Dir == "" {
		return nil
	}
	return os.RemoveAll(r.Dir)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Run resolves all items, at most Workers at a time, and merges the resolved documents in
// item order. Items that fail are dropped and reported in Result.Unresolved; the run fails
// only when none resolve, when a normalized document cannot be merged, or when ctx ends.
// On error the run directory is already cleaned up.
func (p *Pipeline) Run(ctx context.Context, items []Item) (res *Result, err error) {
	start := time.Now()
	dir, err := p.scratchDir()
	if err != nil {
		return nil, err
	}
	log := p.logger().With("run", filepath.Base(dir))
	defer func() {
		if err != nil && !p.KeepFiles {
			os.RemoveAll(dir)
		}
	}()

	items, duplicates := p.dedupe(items, log)
	log.Info("Pipeline run started.", "items", len(items), "dir", dir, "workers", p.workers())

	resolver := &normalize.Resolver{
		Normalizer: &normalize.Normalizer{
			Fitter:   p.Fitter,
			Embedder: p.Embedder,
			Dir:      dir,
			Logger:   p.Logger,
		},
		Logger: p.Logger,
	}

	paths := make([]string, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, item := range items {
		g.Go(func() error {
			path, err := resolver.ResolveLazy(gctx, item.ID, item.Candidates)
			if errors.Is(err, normalize.ErrItemUnresolved) {
				return nil
			}
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("Pipeline run aborted.", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res = &Result{Dir: dir, Duplicates: duplicates, keep: p.KeepFiles}
	var ordered []string
	for i, item := range items {
		if paths[i] == "" {
			res.Unresolved = append(res.Unresolved, item.ID)
			continue
		}
		res.Resolved = append(res.Resolved, item.ID)
		ordered = append(ordered, paths[i])
	}
	if len(ordered) == 0 {
		log.Error("No item could be normalized.", "items", len(items))
		return nil, ErrNoDocuments
	}

	log.Info("Merging PDF files.", "count", len(ordered))
	res.Path = filepath.Join(dir, MergedName)
	if err := merge.ToFile(ordered, res.Path); err != nil {
		log.Error("Failed to merge PDFs.", "error", err)
		return nil, err
	}
	if res.PDF, err = os.ReadFile(res.Path); err != nil {
		return nil, fmt.Errorf("read merged document: %w", err)
	}

	log.Info("Pipeline run finished.",
		"resolved", len(res.Resolved),
		"unresolved", len(res.Unresolved),
		"duplicates", len(res.Duplicates),
		"bytes", len(res.PDF),
		"duration", time.Since(start).String())
	return res, nil
}

func (p *Pipeline) workers() int {
	if p.Workers < 1 {
		return 1
	}
	return p.Workers
}

// scratchDir creates a fresh run directory under the shared root.
func (p *Pipeline) scratchDir() (string, error) {
	root := p.ScratchRoot
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create scratch root: %w", err)
	}
	dir, err := os.MkdirTemp(root, "run-*")
	if err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return dir, nil
}

// dedupe keeps the first item for each ID and returns the IDs of the repeats it dropped.
func (p *Pipeline) dedupe(items []Item, log *slog.Logger) ([]Item, []string) {
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	var dropped []string
	for _, item := range items {
		if seen[item.ID] {
			log.Warn("Duplicate item skipped.", "item", item.ID)
			dropped = append(dropped, item.ID)
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out, dropped
}
