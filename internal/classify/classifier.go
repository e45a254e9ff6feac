// Package classify assigns content kinds and reading-order ordinals
// to raw decoder output.
package classify

import (
	"math"

	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/observability"
)

// Classifier tags raw content units and assigns stable ordinals.
// Reading order is taken from the decoder and preserved; adjacent
// text runs that share formatting are merged into one segment.
type Classifier struct {
	// FontSizeTolerance is the maximum font size difference between
	// two runs still considered the same formatting.
	FontSizeTolerance float64

	// MergeGapFactor scales the font size into the maximum vertical
	// gap across which two runs are merged.
	MergeGapFactor float64

	logger *observability.Logger
}

// NewClassifier creates a Classifier with sensible defaults.
func NewClassifier(logger *observability.Logger) *Classifier {
	return &Classifier{
		FontSizeTolerance: 0.5,
		MergeGapFactor:    2.5,
		logger:            logger.WithComponent("classify"),
	}
}

// Classify converts raw content units into ordered segments. Ordinals
// are unique and strictly increasing in the returned slice, and never
// change afterwards. Unrecognized kinds fall open to text so that no
// content is dropped silently.
func (c *Classifier) Classify(units []domain.RawContentUnit) []*domain.Segment {
	var segments []*domain.Segment

	// prevText is the unit last merged into the trailing text
	// segment, used to compare formatting and vertical distance.
	var prevText *domain.RawContentUnit

	for i := range units {
		unit := units[i]

		switch unit.KindHint {
		case "text":
			if last := lastSegment(segments); last != nil && last.Kind == domain.KindText &&
				prevText != nil && c.mergeable(*prevText, unit) {
				last.Text += "\n" + unit.Text
				prevText = &units[i]
				continue
			}
			segments = append(segments, &domain.Segment{
				Kind:      domain.KindText,
				PageIndex: unit.Position.PageIndex,
				Text:      unit.Text,
			})
			prevText = &units[i]

		case "table":
			segments = append(segments, &domain.Segment{
				Kind:      domain.KindTable,
				PageIndex: unit.Position.PageIndex,
				Text:      unit.Text,
				Grid:      unit.Grid,
			})
			prevText = nil

		case "image":
			segments = append(segments, &domain.Segment{
				Kind:      domain.KindImage,
				PageIndex: unit.Position.PageIndex,
				Blob:      unit.Blob,
			})
			prevText = nil

		default:
			// Fail-open: unrecognized content is preserved as text.
			err := domain.ClassificationError("unrecognized content kind: "+unit.KindHint, nil)
			c.logger.Warn().
				Err(err).
				Int("page", unit.Position.PageIndex).
				Msg("Classifying unrecognized unit as text")
			segments = append(segments, &domain.Segment{
				Kind:      domain.KindText,
				PageIndex: unit.Position.PageIndex,
				Text:      unit.Text,
			})
			prevText = nil
		}
	}

	for i, seg := range segments {
		seg.Ordinal = i
		seg.Status = domain.SegmentPending
		seg.State = domain.StatePending
	}

	return segments
}

// mergeable reports whether a text unit continues the previous one:
// same page, same formatting, small vertical gap. Merging avoids
// fragmenting one paragraph into many small segments.
func (c *Classifier) mergeable(prev, unit domain.RawContentUnit) bool {
	if prev.Position.PageIndex != unit.Position.PageIndex {
		return false
	}
	if prev.FontSize == 0 || unit.FontSize == 0 {
		return true
	}
	if math.Abs(prev.FontSize-unit.FontSize) > c.FontSizeTolerance {
		return false
	}
	gap := unit.Position.Y - prev.Position.Y
	return gap <= unit.FontSize*c.MergeGapFactor
}

func lastSegment(segments []*domain.Segment) *domain.Segment {
	if len(segments) == 0 {
		return nil
	}
	return segments[len(segments)-1]
}
