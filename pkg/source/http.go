package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gardar/mergepdf/pkg/normalize"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTP downloads http and https URLs.
type HTTP struct {
	Client   *http.Client
	MaxBytes int64
	// Header is added to every request, e.g. a forwarded Authorization header.
	Header http.Header
}

func NewHTTP() *HTTP {
	return &HTTP{Client: &http.Client{Timeout: defaultHTTPTimeout}}
}

func (h *HTTP) Fetch(ctx context.Context, ref string) (normalize.Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return normalize.Blob{}, err
	}
	for k, vs := range h.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return normalize.Blob{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return normalize.Blob{}, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := readLimited(resp.Body, h.MaxBytes)
	if err != nil {
		return normalize.Blob{}, err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return normalize.Blob{Data: data, ContentType: ct}, nil
}
