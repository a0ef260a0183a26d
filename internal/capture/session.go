// Package capture owns a microphone subscription, buffers PCM chunks and
// periodically hands fixed windows of audio to a segment processor.
package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/leonardotrapani/hyprscribe/internal/metrics"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/wav"
)

// DefaultInterval is the segment length used when Config.Interval is unset.
const DefaultInterval = 5 * time.Second

// State is the capture lifecycle state.
type State int32

const (
	Idle State = iota
	Capturing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Device streams PCM chunks until stopped. *recording.Recorder satisfies it.
type Device interface {
	Start(ctx context.Context) (<-chan recording.AudioFrame, <-chan error, error)
	Stop() error
	Wait()
}

// Processor runs one flush cycle for a segment: encode, upload, publish.
// Calls for the same session never overlap.
type Processor interface {
	ProcessSegment(ctx context.Context, seg Segment)
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(ctx context.Context, seg Segment)

func (f ProcessorFunc) ProcessSegment(ctx context.Context, seg Segment) { f(ctx, seg) }

// Config holds session settings. Zero values fall back to defaults.
type Config struct {
	Format   wav.Format
	Interval time.Duration
	Clock    clockwork.Clock
	Metrics  *metrics.Metrics
}

// Session is one capture subscription plus its flush scheduler.
type Session struct {
	format    wav.Format
	interval  time.Duration
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	device    Device
	processor Processor

	lifecycle sync.Mutex // serializes Start and Stop
	state     atomic.Int32
	stopCh    chan struct{}
	done      chan struct{}

	buf    buffer
	errors chan error
}

func NewSession(cfg Config, device Device, processor Processor) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewUnregistered()
	}
	if cfg.Format == (wav.Format{}) {
		cfg.Format = wav.DefaultFormat()
	}

	return &Session{
		format:    cfg.Format,
		interval:  cfg.Interval,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		device:    device,
		processor: processor,
		errors:    make(chan error, 8),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Format() wav.Format {
	return s.format
}

// Buffered reports how many chunks are waiting for the next flush.
func (s *Session) Buffered() int {
	return s.buf.len()
}

// Errors delivers device errors, and recording.ErrStreamClosed when the
// device ends its stream on its own. Capture stays open until Stop so the
// buffered audio is still flushed. Errors are dropped when nobody drains the channel.
func (s *Session) Errors() <-chan error {
	return s.errors
}

// Start opens the device and begins buffering. It is a no-op while capturing.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == Capturing {
		log.Debug("capture: start ignored, already capturing")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	frames, deviceErrs, err := s.device.Start(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("start device: %w", err)
	}

	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.state.Store(int32(Capturing))

	// Flush cycles outlive the run context so the final segment is still
	// processed when capture ends because the parent was cancelled.
	processCtx := context.WithoutCancel(ctx)

	go func(stopCh <-chan struct{}, done chan<- struct{}) {
		defer cancel()
		s.run(runCtx, processCtx, frames, deviceErrs, stopCh)
		s.state.Store(int32(Idle))
		close(done)
	}(s.stopCh, s.done)

	log.Info("capture: started", "format", s.format, "interval", s.interval)
	return nil
}

// Stop ends capture, flushes whatever is buffered through the normal flush
// path and returns once the device is released. An in-flight flush is
// allowed to finish before the final one starts. It is a no-op when idle.
func (s *Session) Stop(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == Idle {
		return nil
	}

	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}

	select {
	case <-s.done:
		log.Info("capture: stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for capture to stop: %w", ctx.Err())
	}
}

func (s *Session) run(ctx, processCtx context.Context, frames <-chan recording.AudioFrame, deviceErrs <-chan error, stopCh <-chan struct{}) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	segments := make(chan Segment, 1)
	flushed := make(chan struct{}, 1)
	workerDone := make(chan struct{})
	go s.flushWorker(processCtx, segments, flushed, workerDone)

	inFlight := false

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				if ctx.Err() == nil {
					s.reportDeviceError(recording.ErrStreamClosed)
				}
				continue
			}
			s.buf.append(frame)
			s.metrics.ChunksReceived.Inc()

		case err, ok := <-deviceErrs:
			if !ok {
				deviceErrs = nil
				continue
			}
			s.reportDeviceError(err)

		case <-ticker.Chan():
			if inFlight {
				log.Debug("capture: previous flush still running, deferring tick", "buffered", s.buf.len())
				s.metrics.FlushesDeferred.Inc()
				continue
			}
			inFlight = s.flush(segments)

		case <-flushed:
			inFlight = false

		case <-stopCh:
			s.shutdown(frames, segments, flushed, workerDone, inFlight)
			return

		case <-ctx.Done():
			log.Info("capture: context cancelled, stopping")
			s.shutdown(frames, segments, flushed, workerDone, inFlight)
			return
		}
	}
}

func (s *Session) shutdown(frames <-chan recording.AudioFrame, segments chan Segment, flushed <-chan struct{}, workerDone <-chan struct{}, inFlight bool) {
	if err := s.device.Stop(); err != nil {
		log.Warn("capture: stop device", "err", err)
	}

	// Chunks already delivered by the device belong to the final segment.
	if frames != nil {
		for frame := range frames {
			s.buf.append(frame)
			s.metrics.ChunksReceived.Inc()
		}
	}

	if inFlight {
		<-flushed
	}
	s.flush(segments)
	close(segments)
	<-workerDone

	s.device.Wait()
}

// flush moves the buffered chunks into a new segment and queues it. It
// reports whether a flush was started.
func (s *Session) flush(segments chan<- Segment) bool {
	chunks, startedAt := s.buf.take()
	if len(chunks) == 0 {
		s.metrics.FlushesSkipped.Inc()
		return false
	}

	seg := Segment{
		ID:        uuid.NewString(),
		Format:    s.format,
		StartedAt: startedAt,
		Chunks:    chunks,
	}
	s.metrics.SegmentsFlushed.Inc()
	s.metrics.SegmentBytes.Observe(float64(seg.Len()))
	log.Debug("capture: segment flushed", "id", seg.ID, "chunks", len(chunks), "bytes", seg.Len(), "duration", seg.Duration())

	segments <- seg
	return true
}

func (s *Session) flushWorker(ctx context.Context, segments <-chan Segment, flushed chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	for seg := range segments {
		s.process(ctx, seg)
		flushed <- struct{}{}
	}
}

func (s *Session) process(ctx context.Context, seg Segment) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("capture: segment processor panicked", "id", seg.ID, "panic", r)
		}
	}()
	s.processor.ProcessSegment(ctx, seg)
}

func (s *Session) reportDeviceError(err error) {
	s.metrics.DeviceErrors.Inc()
	log.Warn("capture: device error", "err", err)
	select {
	case s.errors <- err:
	default:
	}
}
