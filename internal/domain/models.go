package domain

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ContentKind identifies the type of content carried by a Segment.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindTable ContentKind = "table"
	KindImage ContentKind = "image"
)

// SegmentStatus is the extraction outcome recorded on a Segment.
type SegmentStatus string

const (
	SegmentPending   SegmentStatus = "pending"
	SegmentSucceeded SegmentStatus = "succeeded"
	SegmentFailed    SegmentStatus = "failed"
	SegmentSkipped   SegmentStatus = "skipped"
)

// SegmentState is the orchestrator's per-segment dispatch state.
type SegmentState string

const (
	StatePending    SegmentState = "pending"
	StateDispatched SegmentState = "dispatched"
	StateRetryWait  SegmentState = "retry-wait"
	StateSucceeded  SegmentState = "succeeded"
	StateFailed     SegmentState = "failed"
)

// DocumentStatus is the aggregate status of an extraction run.
type DocumentStatus string

const (
	DocPending    DocumentStatus = "pending"
	DocInProgress DocumentStatus = "in_progress"
	DocComplete   DocumentStatus = "complete"
	DocPartial    DocumentStatus = "partial"
	DocFailed     DocumentStatus = "failed"
)

// Source identifies the PDF being processed: a file path or an
// in-memory buffer.
type Source struct {
	Path string
	Data []byte
}

// FileSource builds a Source from a file path.
func FileSource(path string) Source {
	return Source{Path: path}
}

// BytesSource builds a Source from an in-memory PDF with a display name.
func BytesSource(data []byte, name string) Source {
	return Source{Path: name, Data: data}
}

// Name returns a short identifier for logging and reports.
func (s Source) Name() string {
	if s.Path != "" {
		return filepath.Base(s.Path)
	}
	return "<memory>"
}

// InMemory reports whether the source carries its own bytes.
func (s Source) InMemory() bool {
	return len(s.Data) > 0
}

// Position locates a content unit on a page. Y grows downward in
// reading order (the decoder normalizes PDF coordinates).
type Position struct {
	PageIndex int
	X         float64
	Y         float64
}

// RawContentUnit is one unit of raw content emitted by the page
// decoder, before classification.
type RawContentUnit struct {
	Position Position
	KindHint string // decoder hint: "text", "table", "image", or other
	Text     string // text runs, or raw region description for tables
	Grid     [][]string
	Blob     []byte // encoded image bytes
	FontSize float64
}

// Segment is one classified, orderable unit of extracted content.
// The ordinal is assigned at classification time and never changes;
// status, state, result and retry count are mutated only by the
// orchestrator task that owns the segment's dispatch.
type Segment struct {
	Ordinal   int
	Kind      ContentKind
	PageIndex int

	Text string
	Grid [][]string
	Blob []byte

	Status        SegmentStatus
	State         SegmentState
	Result        string
	RetryCount    int
	FailureReason string
}

// Terminal reports whether the segment has reached a terminal status.
func (s *Segment) Terminal() bool {
	switch s.Status {
	case SegmentSucceeded, SegmentFailed, SegmentSkipped:
		return true
	}
	return false
}

// ExtractionResult is the value returned by an extractor: either a
// markdown payload or a failure reason. Immutable once produced.
type ExtractionResult struct {
	Markdown      string
	FailureReason string
}

// Success builds a successful extraction result.
func Success(markdown string) ExtractionResult {
	return ExtractionResult{Markdown: markdown}
}

// Failure builds a failed extraction result.
func Failure(reason string) ExtractionResult {
	return ExtractionResult{FailureReason: reason}
}

// Failed reports whether the result carries a failure reason.
func (r ExtractionResult) Failed() bool {
	return r.FailureReason != ""
}

// Document is the top-level unit of one extraction run. It is owned
// exclusively by the orchestrator run that created it.
type Document struct {
	Source   string
	Segments []*Segment
	Status   DocumentStatus
}

// DeriveStatus computes the aggregate status from the terminal
// segments: complete iff every segment succeeded or was skipped,
// partial iff at least one failed but others succeeded, failed iff
// there are no segments at all.
func (d *Document) DeriveStatus() DocumentStatus {
	if len(d.Segments) == 0 {
		return DocFailed
	}
	failed := 0
	for _, seg := range d.Segments {
		switch seg.Status {
		case SegmentFailed:
			failed++
		case SegmentSucceeded, SegmentSkipped:
		default:
			return DocInProgress
		}
	}
	if failed == 0 {
		return DocComplete
	}
	if failed == len(d.Segments) {
		return DocFailed
	}
	return DocPartial
}

// FailedOrdinals returns the ordinals of failed segments in ascending
// order. Segments are kept ordinal-sorted by the classifier.
func (d *Document) FailedOrdinals() []int {
	ordinals := []int{}
	for _, seg := range d.Segments {
		if seg.Status == SegmentFailed {
			ordinals = append(ordinals, seg.Ordinal)
		}
	}
	return ordinals
}

// RunReport is the machine-readable summary of one extraction run.
type RunReport struct {
	RunID                 uuid.UUID      `json:"run_id"`
	Source                string         `json:"source"`
	Status                DocumentStatus `json:"status"`
	SegmentCount          int            `json:"segment_count"`
	FailedSegmentOrdinals []int          `json:"failed_segment_ordinals"`
	TextSegments          int            `json:"text_segments"`
	TableSegments         int            `json:"table_segments"`
	ImageSegments         int            `json:"image_segments"`
	Duration              time.Duration  `json:"duration"`
}

// EventType represents the type of stream event.
type EventType string

const (
	EventStart             EventType = "start"
	EventSegmentProcessing EventType = "segment_processing"
	EventSegmentComplete   EventType = "segment_complete"
	EventSegmentFailed     EventType = "segment_failed"
	EventError             EventType = "error"
	EventComplete          EventType = "complete"
)

// StreamEvent is emitted while a run progresses.
type StreamEvent struct {
	Type      EventType   `json:"type"`
	Ordinal   int         `json:"ordinal,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// GridDims returns the row and column counts of a cell grid. Columns
// are taken from the widest row.
func GridDims(grid [][]string) (rows, cols int) {
	rows = len(grid)
	for _, row := range grid {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return rows, cols
}

// ImagePlaceholder is substituted at assembly time for an image whose
// description could not be generated.
const ImagePlaceholder = "[image could not be described]"

// TablePlaceholder is substituted at assembly time for a table whose
// conversion failed terminally.
const TablePlaceholder = "[table could not be converted]"

// TextPlaceholder is substituted at assembly time for a text block
// whose extraction failed terminally.
const TextPlaceholder = "[text could not be extracted]"

// PlaceholderFor returns the assembly-time placeholder for a failed
// segment of the given kind.
func PlaceholderFor(kind ContentKind) string {
	switch kind {
	case KindImage:
		return ImagePlaceholder
	case KindTable:
		return TablePlaceholder
	default:
		return TextPlaceholder
	}
}

// ImageRef renders the markdown image-reference placeholder plus
// description comment for a described image.
func ImageRef(ordinal int, description string) string {
	return fmt.Sprintf("![Image %d](#image-%d)\n\n<!-- Image %d: %s -->", ordinal, ordinal, ordinal, description)
}
