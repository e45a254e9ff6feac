package domain

import "context"

// Decoder turns a PDF source into raw content units in reading order.
type Decoder interface {
	// Decode produces the raw content units of every page.
	Decode(ctx context.Context, src Source) ([]RawContentUnit, error)

	// DecodePage produces the raw content units of a single page,
	// allowing a run to be restarted per page index.
	DecodePage(ctx context.Context, src Source, pageIndex int) ([]RawContentUnit, error)

	// RenderPage rasterizes one page to an encoded image, used for
	// the OCR fallback on pages whose text layer is unusable.
	RenderPage(ctx context.Context, src Source, pageIndex int) ([]byte, error)
}

// Payload carries the content part of an inference call: prose or an
// encoded image, never both.
type Payload struct {
	Text  string
	Image []byte
}

// AIService is the external inference collaborator. Failures are
// reported as ServiceError values; the transient flag drives the
// orchestrator's retry policy.
type AIService interface {
	Infer(ctx context.Context, prompt string, payload Payload) (string, error)
}

// Extractor converts one segment's raw payload into markdown.
// Implementations must not mutate the segment.
type Extractor interface {
	Extract(ctx context.Context, seg Segment) (ExtractionResult, error)
}
