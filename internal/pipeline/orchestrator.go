package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/leonardotrapani/hyprscribe/internal/metrics"
	"github.com/leonardotrapani/hyprscribe/internal/notes"
	"github.com/leonardotrapani/hyprscribe/internal/notify"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
)

// Structurer rewrites transcriptions as notes. *llm.Structurer satisfies it.
type Structurer interface {
	Structure(ctx context.Context, text string) (string, error)
	Summarize(ctx context.Context, notes string) (string, error)
}

const (
	stageStructure = "structure"
	stageNotes     = "notes"
	stageNotify    = "notify"
	stageSummary   = "summary"
)

type OrchestratorConfig struct {
	// Structurer is optional; without it raw text is forwarded.
	Structurer Structurer
	Appender   notes.Appender
	// Notifier is optional.
	Notifier  notify.Notifier
	Summarize bool
	Metrics   *metrics.Metrics
}

// Orchestrator forwards each transcription to the downstream collaborators.
// A failure in one stage never prevents the others from running.
type Orchestrator struct {
	structurer Structurer
	appender   notes.Appender
	notifier   notify.Notifier
	summarize  bool
	metrics    *metrics.Metrics

	mu      sync.Mutex
	session []string
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Appender == nil {
		cfg.Appender = notes.Discard{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewUnregistered()
	}
	return &Orchestrator{
		structurer: cfg.Structurer,
		appender:   cfg.Appender,
		notifier:   cfg.Notifier,
		summarize:  cfg.Summarize,
		metrics:    cfg.Metrics,
	}
}

// Run handles results in order until the channel is closed or ctx ends.
func (o *Orchestrator) Run(ctx context.Context, results <-chan transcriber.Result) {
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return
			}
			o.Handle(ctx, r)
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) Handle(ctx context.Context, r transcriber.Result) {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return
	}

	structured := o.structure(ctx, r.SegmentID, text)

	o.runStage(stageNotes, r.SegmentID, func() error {
		return o.appender.Append(ctx, structured)
	})
	if o.notifier != nil {
		o.runStage(stageNotify, r.SegmentID, func() error {
			return o.notifier.Transcription(structured)
		})
	}

	o.mu.Lock()
	o.session = append(o.session, structured)
	o.mu.Unlock()

	o.metrics.ResultsDispatched.Inc()
	log.Info("pipeline: transcription dispatched", "segment", r.SegmentID, "chars", len(structured), "latency", r.CompletedAt.Sub(r.CapturedAt))
}

// structure returns the structured text, or text itself when structuring
// fails or produces nothing.
func (o *Orchestrator) structure(ctx context.Context, segmentID, text string) (out string) {
	if o.structurer == nil {
		return text
	}

	out = text
	structured := false
	o.runStage(stageStructure, segmentID, func() error {
		s, err := o.structurer.Structure(ctx, text)
		if err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("empty structured text")
		}
		out, structured = s, true
		return nil
	})
	if !structured {
		o.metrics.StructuringFallbacks.Inc()
	}
	return out
}

func (o *Orchestrator) runStage(stage, segmentID string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.StageFailures.WithLabelValues(stage).Inc()
			log.Error("pipeline: stage panicked", "stage", stage, "segment", segmentID, "panic", r)
		}
	}()

	if err := fn(); err != nil {
		o.metrics.StageFailures.WithLabelValues(stage).Inc()
		log.Warn("pipeline: stage failed", "stage", stage, "segment", segmentID, "err", err)
	}
}

// Transcript returns everything dispatched in this session.
func (o *Orchestrator) Transcript() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.session, "\n\n")
}

// Summarize appends a summary of the session when enabled. Failures leave the
// notes untouched.
func (o *Orchestrator) Summarize(ctx context.Context) {
	if !o.summarize || o.structurer == nil {
		return
	}
	transcript := o.Transcript()
	if transcript == "" {
		return
	}

	o.runStage(stageSummary, "", func() error {
		summary, err := o.structurer.Summarize(ctx, transcript)
		if err != nil {
			return err
		}
		return o.appender.Append(ctx, "### Summary\n\n"+summary)
	})
}
