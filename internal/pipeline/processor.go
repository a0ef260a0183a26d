package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/leonardotrapani/hyprscribe/internal/capture"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
	"github.com/leonardotrapani/hyprscribe/internal/wav"
)

// Transcriber uploads one WAV container. *transcriber.Client satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, segmentID string, container []byte, capturedAt time.Time) transcriber.Result
}

// SegmentProcessor is the flush cycle body: encode, transcribe, publish.
type SegmentProcessor struct {
	transcriber Transcriber
	results     chan<- transcriber.Result
	abort       <-chan struct{}
}

// NewSegmentProcessor publishes non-empty results on results. Publishing
// blocks while the consumer lags; closing abort gives up on the send.
func NewSegmentProcessor(t Transcriber, results chan<- transcriber.Result, abort <-chan struct{}) *SegmentProcessor {
	return &SegmentProcessor{transcriber: t, results: results, abort: abort}
}

func (p *SegmentProcessor) ProcessSegment(ctx context.Context, seg capture.Segment) {
	if seg.Empty() {
		return
	}

	container := wav.Encode(seg.PCM(), seg.Format)
	result := p.transcriber.Transcribe(ctx, seg.ID, container, seg.StartedAt)

	if strings.TrimSpace(result.Text) == "" {
		log.Debug("pipeline: no text for segment", "segment", seg.ID)
		return
	}

	select {
	case p.results <- result:
	case <-p.abort:
		log.Warn("pipeline: dropping result, pipeline aborted", "segment", seg.ID)
	case <-ctx.Done():
		log.Warn("pipeline: dropping result", "segment", seg.ID, "err", ctx.Err())
	}
}
