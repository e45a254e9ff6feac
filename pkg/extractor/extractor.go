// Package extractor is the public entry point for the extraction
// pipeline: open a PDF, run the full decode/classify/extract/assemble
// flow, and get back a markdown document plus a run report.
package extractor

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/spherical/docstruct/internal/assemble"
	"github.com/spherical/docstruct/internal/config"
	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/extract"
	"github.com/spherical/docstruct/internal/llm"
	"github.com/spherical/docstruct/internal/observability"
	"github.com/spherical/docstruct/internal/pdf"
)

// Result is the outcome of one extraction run.
type Result struct {
	// Markdown is the assembled document, with placeholders for failed
	// segments and skipped segments omitted.
	Markdown string

	// Document carries the per-segment detail.
	Document *domain.Document

	// Report is the machine-readable run summary.
	Report *domain.RunReport
}

// Event re-exports the progress event type for consumers of Process.
type Event = domain.StreamEvent

// Client runs extraction jobs. Safe for concurrent use: each run owns
// its own document and segments.
type Client struct {
	cfg     *config.Config
	service *extract.Service
	logger  *observability.Logger
}

// NewClient creates a client from a config file path plus environment
// overrides. An empty path uses defaults. A .env file in the working
// directory is loaded first when present.
func NewClient(configPath string) (*Client, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a client from an explicit configuration.
func NewClientWithConfig(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "docstruct",
	})

	ai := llm.NewClient(llm.Options{
		BaseURL:        cfg.AI.BaseURL,
		APIKey:         cfg.AI.APIKey,
		Model:          cfg.AI.Model,
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         logger,
	})

	service := extract.NewService(pdf.NewDecoder(logger), ai, extract.Options{
		MaxRetries:  cfg.Extraction.MaxRetries,
		Concurrency: cfg.Extraction.ConcurrencyLimit,
		SkipTables:  cfg.Extraction.SkipTables,
		SkipImages:  cfg.Extraction.SkipImages,
		OCRFallback: cfg.Extraction.OCRFallback,
	}, logger)

	return &Client{cfg: cfg, service: service, logger: logger}, nil
}

// Config returns the client's effective configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Extract runs the pipeline on a PDF file and blocks until the run is
// terminal. The returned error is non-nil only for run-fatal failures
// (unreadable or encrypted PDF); per-segment failures are reported in
// the result instead.
func (c *Client) Extract(ctx context.Context, path string) (*Result, error) {
	return c.run(ctx, domain.FileSource(path), nil)
}

// ExtractBytes runs the pipeline on an in-memory PDF.
func (c *Client) ExtractBytes(ctx context.Context, data []byte, name string) (*Result, error) {
	return c.run(ctx, domain.BytesSource(data, name), nil)
}

// Process runs the pipeline on a PDF file while emitting progress
// events to the given channel. Events are dropped rather than block a
// slow consumer; the channel is not closed by Process.
func (c *Client) Process(ctx context.Context, path string, events chan<- Event) (*Result, error) {
	return c.run(ctx, domain.FileSource(path), events)
}

func (c *Client) run(ctx context.Context, src domain.Source, events chan<- Event) (*Result, error) {
	if timeout := c.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	doc, report, err := c.service.Run(ctx, src, events)
	if err != nil {
		return &Result{Document: doc, Report: report}, err
	}

	return &Result{
		Markdown: assemble.Assemble(doc),
		Document: doc,
		Report:   report,
	}, nil
}
