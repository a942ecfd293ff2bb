package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrItemUnresolved is returned when no candidate of an item normalized.
var ErrItemUnresolved = errors.New("item unresolved")

// Candidate produces one source blob on demand. A fetch error counts as a failed candidate.
type Candidate func(ctx context.Context) (Blob, error)

// Resolver tries an item's candidates in order and keeps the first that normalizes.
type Resolver struct {
	Normalizer *Normalizer
	Logger     *slog.Logger
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Resolve normalizes pre-fetched blobs in order. The blobs' own IDs are replaced by id.
func (r *Resolver) Resolve(ctx context.Context, id string, blobs []Blob) (string, error) {
	candidates := make([]Candidate, len(blobs))
	for i, b := range blobs {
		candidates[i] = func(context.Context) (Blob, error) { return b, nil }
	}
	return r.ResolveLazy(ctx, id, candidates)
}

// ResolveLazy fetches and normalizes candidates one at a time, stopping at the first
// success. Later candidates are never fetched. Only context cancellation stops the search
// early; every other failure moves on to the next candidate.
func (r *Resolver) ResolveLazy(ctx context.Context, id string, candidates []Candidate) (string, error) {
	log := r.logger().With("item", id)
	var errs []error
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		log := log.With("candidate", i)

		blob, err := candidate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Warn("Candidate fetch failed", "error", err)
			errs = append(errs, fmt.Errorf("candidate %d: %w", i, err))
			continue
		}
		blob.ID = id

		path, err := r.Normalizer.Normalize(ctx, blob)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			errs = append(errs, fmt.Errorf("candidate %d: %w", i, err))
			continue
		}
		if i > 0 {
			log.Info("Item resolved by fallback candidate.")
		}
		return path, nil
	}

	log.Warn("No candidate could be normalized, dropping item.", "candidates", len(candidates))
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: item %s has no candidates", ErrItemUnresolved, id)
	}
	return "", fmt.Errorf("%w: item %s: %w", ErrItemUnresolved, id, errors.Join(errs...))
}
