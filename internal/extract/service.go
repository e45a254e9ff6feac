// Package extract contains the per-kind extractors and the
// orchestrator that drives a run: classification, bounded concurrent
// dispatch, per-segment retry, and the run report.
package extract

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/spherical/docstruct/internal/classify"
	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/format"
	"github.com/spherical/docstruct/internal/observability"
)

// Options configures a Service.
type Options struct {
	// MaxRetries bounds re-dispatches after transient service errors.
	// The first attempt is not counted.
	MaxRetries int

	// Concurrency bounds segments dispatched at once.
	Concurrency int

	SkipTables  bool
	SkipImages  bool
	OCRFallback bool

	// InitialBackoff is the first retry-wait interval; it doubles per
	// retry up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	return o
}

// Service orchestrates one extraction run: decode, classify, dispatch
// each segment to its extractor under the concurrency limit, and
// derive the document status from the terminal segments.
type Service struct {
	decoder    domain.Decoder
	classifier *classify.Classifier
	ai         domain.AIService
	formatter  *format.Formatter
	opts       Options
	logger     *observability.Logger
}

// NewService creates an orchestrator over the given collaborators.
func NewService(decoder domain.Decoder, ai domain.AIService, opts Options, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Service{
		decoder:    decoder,
		classifier: classify.NewClassifier(logger),
		ai:         ai,
		formatter:  format.NewFormatter(),
		opts:       opts.withDefaults(),
		logger:     logger.WithComponent("orchestrator"),
	}
}

// Run executes one extraction run. Decode failures abort the run and
// are returned; per-segment failures are recorded on the document
// instead. events may be nil; when set, progress events are emitted to
// it (non-blocking, the channel is never closed by Run).
func (s *Service) Run(ctx context.Context, src domain.Source, events chan<- domain.StreamEvent) (*domain.Document, *domain.RunReport, error) {
	runID := uuid.New()
	logger := s.logger.WithRun(runID.String())
	start := time.Now()

	doc := &domain.Document{Source: src.Name(), Status: domain.DocPending}

	logger.Info().Str("source", doc.Source).Msg("Starting extraction run")
	emit(events, domain.StreamEvent{Type: domain.EventStart, Payload: doc.Source})

	units, err := s.decoder.Decode(ctx, src)
	if err != nil {
		doc.Status = domain.DocFailed
		logger.Error().Err(err).Msg("Decode failed, aborting run")
		emit(events, domain.StreamEvent{Type: domain.EventError, Payload: err.Error()})
		return doc, s.buildReport(runID, doc, start), err
	}

	doc.Segments = s.classifier.Classify(units)
	if len(doc.Segments) == 0 {
		doc.Status = domain.DocFailed
		err := domain.DecodeError("document produced no content segments", nil)
		emit(events, domain.StreamEvent{Type: domain.EventError, Payload: err.Error()})
		return doc, s.buildReport(runID, doc, start), err
	}
	doc.Status = domain.DocInProgress

	s.markSkipped(doc)

	pending := make([]*domain.Segment, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		if !seg.Terminal() {
			pending = append(pending, seg)
		}
	}

	extractors := s.extractors(src)

	work := make(chan *domain.Segment, len(pending))
	for _, seg := range pending {
		work <- seg
	}
	close(work)

	workers := s.opts.Concurrency
	if workers > len(pending) {
		workers = len(pending)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seg := range work {
				s.processSegment(ctx, seg, extractors, events, logger)
			}
		}()
	}
	wg.Wait()

	doc.Status = doc.DeriveStatus()
	report := s.buildReport(runID, doc, start)

	logger.Info().
		Str("status", string(doc.Status)).
		Int("segments", report.SegmentCount).
		Ints("failed_ordinals", report.FailedSegmentOrdinals).
		Dur("duration", report.Duration).
		Msg("Extraction run finished")
	emit(events, domain.StreamEvent{Type: domain.EventComplete, Payload: report})

	return doc, report, nil
}

// markSkipped records skipped status on segments whose kind is
// disabled for this run, before any dispatch.
func (s *Service) markSkipped(doc *domain.Document) {
	for _, seg := range doc.Segments {
		if (seg.Kind == domain.KindTable && s.opts.SkipTables) ||
			(seg.Kind == domain.KindImage && s.opts.SkipImages) {
			seg.Status = domain.SegmentSkipped
		}
	}
}

// extractors builds the kind dispatch table for one run. The text
// extractor carries a page renderer bound to the run's source for its
// OCR fallback.
func (s *Service) extractors(src domain.Source) map[domain.ContentKind]domain.Extractor {
	render := func(ctx context.Context, pageIndex int) ([]byte, error) {
		return s.decoder.RenderPage(ctx, src, pageIndex)
	}
	return map[domain.ContentKind]domain.Extractor{
		domain.KindText:  NewTextExtractor(s.formatter, s.ai, render, s.opts.OCRFallback, s.logger),
		domain.KindTable: NewTableConverter(s.ai, s.logger),
		domain.KindImage: NewImageDescriber(s.ai, s.logger),
	}
}

// processSegment drives one segment through its dispatch states until
// it is terminal. Only transient service errors are re-dispatched, at
// most MaxRetries times; everything else fails the segment once.
func (s *Service) processSegment(ctx context.Context, seg *domain.Segment, extractors map[domain.ContentKind]domain.Extractor, events chan<- domain.StreamEvent, logger *observability.Logger) {
	ex, ok := extractors[seg.Kind]
	if !ok {
		s.failSegment(seg, "no extractor for kind "+string(seg.Kind), events)
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.InitialBackoff
	bo.MaxInterval = s.opts.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.RandomizationFactor = 0
	bo.Reset()

	for {
		if ctx.Err() != nil {
			s.failSegment(seg, "cancelled", events)
			return
		}

		seg.State = domain.StateDispatched
		emit(events, domain.StreamEvent{Type: domain.EventSegmentProcessing, Ordinal: seg.Ordinal, Payload: string(seg.Kind)})

		result, err := ex.Extract(ctx, *seg)
		if err == nil {
			if result.Failed() {
				s.failSegment(seg, result.FailureReason, events)
				return
			}
			seg.State = domain.StateSucceeded
			seg.Status = domain.SegmentSucceeded
			seg.Result = result.Markdown
			emit(events, domain.StreamEvent{Type: domain.EventSegmentComplete, Ordinal: seg.Ordinal})
			return
		}

		if ctx.Err() != nil {
			s.failSegment(seg, "cancelled", events)
			return
		}

		if domain.IsTransient(err) && seg.RetryCount < s.opts.MaxRetries {
			seg.State = domain.StateRetryWait
			seg.RetryCount++
			wait := bo.NextBackOff()

			logger.Warn().
				Err(err).
				Int("ordinal", seg.Ordinal).
				Int("retry", seg.RetryCount).
				Dur("wait", wait).
				Msg("Transient failure, scheduling re-dispatch")

			select {
			case <-ctx.Done():
				s.failSegment(seg, "cancelled", events)
				return
			case <-time.After(wait):
			}
			continue
		}

		s.failSegment(seg, err.Error(), events)
		return
	}
}

func (s *Service) failSegment(seg *domain.Segment, reason string, events chan<- domain.StreamEvent) {
	seg.State = domain.StateFailed
	seg.Status = domain.SegmentFailed
	seg.FailureReason = reason
	emit(events, domain.StreamEvent{Type: domain.EventSegmentFailed, Ordinal: seg.Ordinal, Payload: reason})
}

func (s *Service) buildReport(runID uuid.UUID, doc *domain.Document, start time.Time) *domain.RunReport {
	report := &domain.RunReport{
		RunID:                 runID,
		Source:                doc.Source,
		Status:                doc.Status,
		SegmentCount:          len(doc.Segments),
		FailedSegmentOrdinals: doc.FailedOrdinals(),
		Duration:              time.Since(start),
	}
	for _, seg := range doc.Segments {
		switch seg.Kind {
		case domain.KindText:
			report.TextSegments++
		case domain.KindTable:
			report.TableSegments++
		case domain.KindImage:
			report.ImageSegments++
		}
	}
	return report
}

// emit sends an event without ever blocking a worker on a slow
// consumer.
func emit(events chan<- domain.StreamEvent, ev domain.StreamEvent) {
	if events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case events <- ev:
	default:
	}
}
