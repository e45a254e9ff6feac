package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/docstruct/internal/domain"
)

func TestAssemble_OrdinalOrder(t *testing.T) {
	doc := &domain.Document{
		Segments: []*domain.Segment{
			{Ordinal: 2, Kind: domain.KindText, Status: domain.SegmentSucceeded, Result: "third"},
			{Ordinal: 0, Kind: domain.KindText, Status: domain.SegmentSucceeded, Result: "first"},
			{Ordinal: 1, Kind: domain.KindText, Status: domain.SegmentSucceeded, Result: "second"},
		},
	}

	assert.Equal(t, "first\n\nsecond\n\nthird", Assemble(doc))
}

func TestAssemble_FailedSegmentsBecomePlaceholders(t *testing.T) {
	doc := &domain.Document{
		Segments: []*domain.Segment{
			{Ordinal: 0, Kind: domain.KindText, Status: domain.SegmentSucceeded, Result: "intro"},
			{Ordinal: 1, Kind: domain.KindTable, Status: domain.SegmentFailed, FailureReason: "bad request"},
			{Ordinal: 2, Kind: domain.KindImage, Status: domain.SegmentFailed, FailureReason: "bad request"},
			{Ordinal: 3, Kind: domain.KindText, Status: domain.SegmentFailed, FailureReason: "bad request"},
		},
	}

	got := Assemble(doc)
	assert.Contains(t, got, "intro")
	assert.Contains(t, got, domain.TablePlaceholder)
	assert.Contains(t, got, domain.ImagePlaceholder)
	assert.Contains(t, got, domain.TextPlaceholder)
}

func TestAssemble_SkippedSegmentsAreOmitted(t *testing.T) {
	doc := &domain.Document{
		Segments: []*domain.Segment{
			{Ordinal: 0, Kind: domain.KindText, Status: domain.SegmentSucceeded, Result: "before"},
			{Ordinal: 1, Kind: domain.KindTable, Status: domain.SegmentSkipped},
			{Ordinal: 2, Kind: domain.KindText, Status: domain.SegmentSucceeded, Result: "after"},
		},
	}

	assert.Equal(t, "before\n\nafter", Assemble(doc))
}

func TestAssemble_EmptyResultsLeaveNoBlankBlocks(t *testing.T) {
	doc := &domain.Document{
		Segments: []*domain.Segment{
			{Ordinal: 0, Kind: domain.KindText, Status: domain.SegmentSucceeded, Result: "content"},
			{Ordinal: 1, Kind: domain.KindText, Status: domain.SegmentSucceeded, Result: "   "},
		},
	}

	assert.Equal(t, "content", Assemble(doc))
}

func TestAssemble_Deterministic(t *testing.T) {
	doc := &domain.Document{
		Segments: []*domain.Segment{
			{Ordinal: 1, Kind: domain.KindTable, Status: domain.SegmentFailed},
			{Ordinal: 0, Kind: domain.KindText, Status: domain.SegmentSucceeded, Result: "text"},
		},
	}

	first := Assemble(doc)
	second := Assemble(doc)
	assert.Equal(t, first, second)
	// Assembly must not reorder the document's own slice.
	assert.Equal(t, 1, doc.Segments[0].Ordinal)
}

func TestAssemble_Empty(t *testing.T) {
	assert.Equal(t, "", Assemble(&domain.Document{}))
}
