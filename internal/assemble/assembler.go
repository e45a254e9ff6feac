// Package assemble merges extracted segments into the final markdown
// document. Pure string assembly, no I/O and no AI involvement.
package assemble

import (
	"sort"
	"strings"

	"github.com/spherical/docstruct/internal/domain"
)

// Assemble renders the document's segments into one markdown string in
// ordinal order. Failed segments are replaced by a kind-specific
// placeholder, skipped segments are omitted. Deterministic: the same
// document always assembles to the same output.
func Assemble(doc *domain.Document) string {
	segments := make([]*domain.Segment, len(doc.Segments))
	copy(segments, doc.Segments)
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Ordinal < segments[j].Ordinal
	})

	var parts []string
	for _, seg := range segments {
		switch seg.Status {
		case domain.SegmentSucceeded:
			if block := strings.TrimSpace(seg.Result); block != "" {
				parts = append(parts, block)
			}
		case domain.SegmentFailed:
			parts = append(parts, domain.PlaceholderFor(seg.Kind))
		case domain.SegmentSkipped:
			// Disabled kinds leave no trace in the output.
		}
	}

	return strings.Join(parts, "\n\n")
}
