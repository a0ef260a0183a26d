// Package pipeline wires a capture session to the transcription client and
// the downstream note-taking collaborators.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/leonardotrapani/hyprscribe/internal/capture"
	"github.com/leonardotrapani/hyprscribe/internal/metrics"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
)

type Status string

const (
	Idle      Status = "idle"
	Recording Status = "recording"
	Stopping  Status = "stopping"
	Stopped   Status = "stopped"
)

const DefaultQueueSize = 16

type Deps struct {
	Device      capture.Device
	Transcriber Transcriber
	Capture     capture.Config
	QueueSize   int
	Metrics     *metrics.Metrics

	Orchestrator OrchestratorConfig
}

// Pipeline runs one recording session from Start to Stop. It is not
// restartable; build a new one for the next session.
type Pipeline struct {
	session      *capture.Session
	orchestrator *Orchestrator
	results      chan transcriber.Result
	abort        chan struct{}

	mu         sync.Mutex
	status     Status
	orchDone   chan struct{}
	cancelOrch context.CancelFunc
}

func New(d Deps) *Pipeline {
	if d.QueueSize <= 0 {
		d.QueueSize = DefaultQueueSize
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewUnregistered()
	}
	d.Capture.Metrics = d.Metrics
	if d.Orchestrator.Metrics == nil {
		d.Orchestrator.Metrics = d.Metrics
	}

	results := make(chan transcriber.Result, d.QueueSize)
	abort := make(chan struct{})
	processor := NewSegmentProcessor(d.Transcriber, results, abort)

	return &Pipeline{
		session:      capture.NewSession(d.Capture, d.Device, processor),
		orchestrator: NewOrchestrator(d.Orchestrator),
		results:      results,
		abort:        abort,
		status:       Idle,
	}
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Errors delivers non-fatal device errors from the capture session.
func (p *Pipeline) Errors() <-chan error {
	return p.session.Errors()
}

func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.status {
	case Recording:
		return nil
	case Stopping, Stopped:
		return fmt.Errorf("pipeline already stopped")
	}

	orchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.orchestrator.Run(orchCtx, p.results)
	}()

	if err := p.session.Start(ctx); err != nil {
		cancel()
		<-done
		return err
	}

	p.cancelOrch = cancel
	p.orchDone = done
	p.status = Recording
	log.Info("Pipeline: recording started")
	return nil
}

// Stop ends capture, waits until every buffered segment has been transcribed
// and dispatched, then appends the session summary if enabled. If ctx ends
// first, pending results are abandoned.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.status != Recording {
		p.mu.Unlock()
		return nil
	}
	p.status = Stopping
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.status = Stopped
		p.mu.Unlock()
	}()

	if err := p.session.Stop(ctx); err != nil {
		close(p.abort)
		p.cancelOrch()
		<-p.orchDone
		return fmt.Errorf("stop capture: %w", err)
	}

	// The session has no flush in flight, so nothing sends on results anymore.
	close(p.results)

	select {
	case <-p.orchDone:
	case <-ctx.Done():
		close(p.abort)
		p.cancelOrch()
		<-p.orchDone
		return fmt.Errorf("wait for pending transcriptions: %w", ctx.Err())
	}
	p.cancelOrch()

	p.orchestrator.Summarize(ctx)
	log.Info("Pipeline: recording stopped")
	return nil
}

// Transcript returns the text dispatched so far.
func (p *Pipeline) Transcript() string {
	return p.orchestrator.Transcript()
}
