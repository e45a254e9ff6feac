package extract

import (
	"context"
	"strings"

	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/format"
	"github.com/spherical/docstruct/internal/llm"
	"github.com/spherical/docstruct/internal/observability"
)

// RenderFunc rasterizes one page of the current source, used by the
// OCR fallback.
type RenderFunc func(ctx context.Context, pageIndex int) ([]byte, error)

// TextExtractor formats a text segment into markdown prose. Formatting
// is deterministic and local; the AI service is only consulted when
// the text layer produced nothing usable and the OCR fallback is on.
type TextExtractor struct {
	formatter *format.Formatter
	ai        domain.AIService
	render    RenderFunc
	ocr       bool
	logger    *observability.Logger
}

// NewTextExtractor creates a text extractor. render may be nil when
// the OCR fallback is disabled.
func NewTextExtractor(formatter *format.Formatter, ai domain.AIService, render RenderFunc, ocr bool, logger *observability.Logger) *TextExtractor {
	return &TextExtractor{
		formatter: formatter,
		ai:        ai,
		render:    render,
		ocr:       ocr,
		logger:    logger.WithComponent("text"),
	}
}

// Extract formats one text segment.
func (t *TextExtractor) Extract(ctx context.Context, seg domain.Segment) (domain.ExtractionResult, error) {
	formatted := t.formatter.Format(seg.Text)
	if strings.TrimSpace(formatted) != "" {
		return domain.Success(formatted), nil
	}

	if !t.ocr || t.render == nil {
		return domain.Success(""), nil
	}

	t.logger.Debug().
		Int("ordinal", seg.Ordinal).
		Int("page", seg.PageIndex).
		Msg("Empty text layer, running OCR fallback")

	blob, err := t.render(ctx, seg.PageIndex)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	out, err := t.ai.Infer(ctx, llm.OCRPrompt(), domain.Payload{Image: blob})
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	return domain.Success(strings.TrimSpace(out)), nil
}
