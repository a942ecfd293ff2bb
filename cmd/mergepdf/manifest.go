package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gardar/mergepdf/pkg/pipeline"
	"github.com/gardar/mergepdf/pkg/source"
)

type manifest struct {
	Items []manifestItem `yaml:"items"`
}

type manifestItem struct {
	ID      string   `yaml:"id"`
	Sources []string `yaml:"sources"`
}

// loadManifest reads the YAML list of items and their candidate sources.
func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Items) == 0 {
		return nil, errors.New("manifest lists no items")
	}
	for i, it := range m.Items {
		if strings.TrimSpace(it.ID) == "" {
			return nil, fmt.Errorf("item %d has no id", i+1)
		}
	}
	return &m, nil
}

// usesScheme reports whether any source needs the given fetcher.
func (m *manifest) usesScheme(scheme string) bool {
	for _, it := range m.Items {
		for _, ref := range it.Sources {
			if source.Scheme(ref) == scheme {
				return true
			}
		}
	}
	return false
}

func (m *manifest) pipelineItems(router *source.Router) []pipeline.Item {
	items := make([]pipeline.Item, len(m.Items))
	for i, it := range m.Items {
		items[i] = pipeline.Item{ID: it.ID, Candidates: router.Candidates(it.Sources)}
	}
	return items
}
