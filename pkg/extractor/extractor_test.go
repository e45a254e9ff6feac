package extractor

import (
	"context"
	"testing"

	"github.com/spherical/docstruct/internal/config"
	"github.com/spherical/docstruct/internal/domain"
)

func TestNewClientWithConfig_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extraction.ConcurrencyLimit = 0

	if _, err := NewClientWithConfig(cfg); err == nil {
		t.Error("invalid config should be rejected")
	}
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	client, err := NewClientWithConfig(config.DefaultConfig())
	if err != nil {
		t.Fatalf("NewClientWithConfig() error: %v", err)
	}
	if client.Config().Extraction.ConcurrencyLimit != 4 {
		t.Errorf("ConcurrencyLimit = %d, want 4", client.Config().Extraction.ConcurrencyLimit)
	}
}

func TestExtract_MissingFile(t *testing.T) {
	client, err := NewClientWithConfig(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	result, err := client.Extract(context.Background(), "/nonexistent/file.pdf")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if result == nil || result.Document == nil {
		t.Fatal("a failed run should still return the document")
	}
	if result.Document.Status != domain.DocFailed {
		t.Errorf("Status = %q, want failed", result.Document.Status)
	}
}
