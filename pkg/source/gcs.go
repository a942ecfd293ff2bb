package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/gardar/mergepdf/pkg/normalize"
)

// GCS reads gs://bucket/object references.
type GCS struct {
	Client   *storage.Client
	MaxBytes int64
}

// ParseGSURL splits gs://bucket/object.
func ParseGSURL(ref string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(ref, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URL: %q", ref)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// URL needs bucket and object: %q", ref)
	}
	return bucket, object, nil
}

func (g *GCS) Fetch(ctx context.Context, ref string) (normalize.Blob, error) {
	bucket, object, err := ParseGSURL(ref)
	if err != nil {
		return normalize.Blob{}, err
	}
	gcsReader, err := g.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return normalize.Blob{}, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()

	data, err := readLimited(gcsReader, g.MaxBytes)
	if err != nil {
		return normalize.Blob{}, err
	}
	ct := gcsReader.Attrs.ContentType
	if ct == "" {
		ct = contentType(object, data)
	}
	return normalize.Blob{Data: data, ContentType: ct}, nil
}

// Upload copies a local file to gs://bucket/object, retrying with exponential backoff.
func Upload(ctx context.Context, client *storage.Client, localPath, dest string, logger *slog.Logger) error {
	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	if logger == nil {
		logger = slog.Default()
	}
	bucket, object, err := ParseGSURL(dest)
	if err != nil {
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			localFileReader, err := os.Open(localPath)
			if err != nil {
				return fmt.Errorf("could not open local file %s: %w", localPath, err)
			}
			defer localFileReader.Close()

			writeCtx, cancel := context.WithTimeout(ctx, time.Second*50)
			defer cancel()

			gcsWriter := client.Bucket(bucket).Object(object).NewWriter(writeCtx)
			gcsWriter.ContentType = "application/pdf"

			if _, err := io.Copy(gcsWriter, localFileReader); err != nil {
				_ = gcsWriter.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}

			if err := gcsWriter.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()

		if err == nil {
			return nil
		}

		lastErr = err
		logger.Warn(
			"Upload failed, will retry.",
			"gcsObject", dest,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			logger.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", dest, "error", ctx.Err())
			return ctx.Err()
		}
	}
	logger.Error("Upload failed after all retries.", "gcsObject", dest, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", dest, lastErr)
}
