package gdocai

import (
	"context"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// Config holds the Document AI processor coordinates.
type Config struct {
	ProjectID   string
	Location    string
	ProcessorID string
	// CredentialsFile is a service account key; empty means Application Default Credentials.
	CredentialsFile string
	// DebugDir receives the raw API response of every page as JSON when set.
	DebugDir string
}

func (c Config) validate() error {
	switch {
	case c.ProjectID == "":
		return fmt.Errorf("documentai project_id is required")
	case c.Location == "":
		return fmt.Errorf("documentai location is required")
	case c.ProcessorID == "":
		return fmt.Errorf("documentai processor_id is required")
	}
	return nil
}

// processorName builds the resource name of the processor.
func (c Config) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// processor is the slice of the Document AI client the engine needs.
type processor interface {
	process(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error)
	Close() error
}

type clientProcessor struct {
	client *documentai.DocumentProcessorClient
}

func newClientProcessor(ctx context.Context, cfg Config) (*clientProcessor, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	return &clientProcessor{client: client}, nil
}

func (p *clientProcessor) process(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	return resp.GetDocument(), nil
}

func (p *clientProcessor) Close() error { return p.client.Close() }
