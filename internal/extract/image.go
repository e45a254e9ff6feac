package extract

import (
	"context"
	"strings"

	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/llm"
	"github.com/spherical/docstruct/internal/observability"
)

// ImageDescriber produces a markdown image reference with an AI
// generated description for an image segment.
type ImageDescriber struct {
	ai     domain.AIService
	logger *observability.Logger
}

// NewImageDescriber creates a new image describer.
func NewImageDescriber(ai domain.AIService, logger *observability.Logger) *ImageDescriber {
	return &ImageDescriber{
		ai:     ai,
		logger: logger.WithComponent("image"),
	}
}

// Extract describes one image segment.
func (d *ImageDescriber) Extract(ctx context.Context, seg domain.Segment) (domain.ExtractionResult, error) {
	if len(seg.Blob) == 0 {
		return domain.ExtractionResult{}, domain.ValidationErr("image segment has no payload", nil)
	}

	desc, err := d.ai.Infer(ctx, llm.ImagePrompt(), domain.Payload{Image: seg.Blob})
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	desc = strings.TrimSpace(desc)
	if desc == "" {
		return domain.ExtractionResult{}, domain.ServiceError("empty image description", false, nil)
	}

	d.logger.Debug().
		Int("ordinal", seg.Ordinal).
		Int("description_chars", len(desc)).
		Msg("Image described")

	return domain.Success(domain.ImageRef(seg.Ordinal, desc)), nil
}
