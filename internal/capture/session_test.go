package capture_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/leonardotrapani/hyprscribe/internal/capture"
	"github.com/leonardotrapani/hyprscribe/internal/metrics"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/testutil"
	"github.com/leonardotrapani/hyprscribe/internal/wav"
)

const interval = 5 * time.Second

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntil(n int)
}

type harness struct {
	session  *capture.Session
	device   *testutil.FakeDevice
	clock    fakeClock
	metrics  *metrics.Metrics
	segments chan capture.Segment
}

func newHarness(t *testing.T, processor capture.Processor) *harness {
	t.Helper()

	h := &harness{
		device:   testutil.NewFakeDevice(),
		clock:    clockwork.NewFakeClock(),
		metrics:  metrics.NewUnregistered(),
		segments: make(chan capture.Segment, 16),
	}
	if processor == nil {
		processor = capture.ProcessorFunc(func(ctx context.Context, seg capture.Segment) {
			h.segments <- seg
		})
	}
	h.session = capture.NewSession(capture.Config{
		Format:   wav.DefaultFormat(),
		Interval: interval,
		Clock:    h.clock,
		Metrics:  h.metrics,
	}, h.device, processor)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	// The run loop owns the ticker; wait until it is armed.
	h.clock.BlockUntil(1)
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := h.session.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

func (h *harness) push(t *testing.T, chunks ...[]byte) {
	t.Helper()
	want := h.session.Buffered() + len(chunks)
	for _, c := range chunks {
		if !h.device.Push(c) {
			t.Fatalf("Push() on a stopped device")
		}
	}
	testutil.WaitForCondition(t, func() bool { return h.session.Buffered() == want }, 2*time.Second)
}

func (h *harness) nextSegment(t *testing.T) capture.Segment {
	t.Helper()
	select {
	case seg := <-h.segments:
		return seg
	case <-time.After(2 * time.Second):
		t.Fatal("no segment flushed")
		return capture.Segment{}
	}
}

func (h *harness) expectNoSegment(t *testing.T) {
	t.Helper()
	select {
	case seg := <-h.segments:
		t.Fatalf("unexpected segment with %d chunks", len(seg.Chunks))
	case <-time.After(50 * time.Millisecond):
	}
}

func chunk(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestSessionStartStopIdempotent(t *testing.T) {
	h := newHarness(t, nil)

	if got := h.session.State(); got != capture.Idle {
		t.Fatalf("initial state = %v, want idle", got)
	}

	h.start(t)
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}
	if got := h.device.Starts(); got != 1 {
		t.Errorf("device started %d times, want 1", got)
	}
	if got := h.session.State(); got != capture.Capturing {
		t.Errorf("state = %v, want capturing", got)
	}

	h.stop(t)
	h.stop(t)
	if got := h.session.State(); got != capture.Idle {
		t.Errorf("state after stop = %v, want idle", got)
	}
	if got := h.device.Stops(); got != 1 {
		t.Errorf("device stopped %d times, want 1", got)
	}
}

func TestSessionStopWhenIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.stop(t)
	if got := h.device.Starts(); got != 0 {
		t.Errorf("device started %d times, want 0", got)
	}
}

func TestSessionStartError(t *testing.T) {
	h := newHarness(t, nil)
	h.device.StartError = errors.New("no such device")

	err := h.session.Start(context.Background())
	if err == nil {
		t.Fatal("Start() expected error")
	}
	if !errors.Is(err, h.device.StartError) {
		t.Errorf("Start() error = %v, want wrapped device error", err)
	}
	if got := h.session.State(); got != capture.Idle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestSessionFlushesOnTick(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	defer h.stop(t)

	h.push(t, chunk(1, 4), chunk(2, 4), chunk(3, 4))
	h.clock.Advance(interval)

	seg := h.nextSegment(t)
	if len(seg.Chunks) != 3 {
		t.Fatalf("segment has %d chunks, want 3", len(seg.Chunks))
	}
	for i, c := range seg.Chunks {
		if c[0] != byte(i+1) {
			t.Errorf("chunk %d starts with %d, want %d", i, c[0], i+1)
		}
	}
	if seg.Format != wav.DefaultFormat() {
		t.Errorf("segment format = %v, want %v", seg.Format, wav.DefaultFormat())
	}
	if seg.ID == "" {
		t.Error("segment has no id")
	}
	if seg.StartedAt.IsZero() {
		t.Error("segment has no start time")
	}
	if got := h.session.Buffered(); got != 0 {
		t.Errorf("buffer holds %d chunks after flush, want 0", got)
	}
	if got := promtest.ToFloat64(h.metrics.SegmentsFlushed); got != 1 {
		t.Errorf("segments flushed = %v, want 1", got)
	}
}

func TestSessionSkipsEmptyTick(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	defer h.stop(t)

	h.clock.Advance(interval)
	testutil.WaitForCondition(t, func() bool {
		return promtest.ToFloat64(h.metrics.FlushesSkipped) == 1
	}, 2*time.Second)
	h.expectNoSegment(t)
}

func TestSessionStopFlushesRemainingAudio(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.push(t, chunk(7, 3200), chunk(8, 3200))
	h.stop(t)

	// Stop returns only after the final flush has been processed.
	select {
	case seg := <-h.segments:
		if seg.Len() != 6400 {
			t.Errorf("final segment has %d bytes, want 6400", seg.Len())
		}
		if got := seg.Duration(); got != 200*time.Millisecond {
			t.Errorf("final segment duration = %v, want 200ms", got)
		}
	default:
		t.Fatal("Stop() returned before the final segment was processed")
	}
}

func TestSessionStopWithEmptyBufferSkipsFlush(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.stop(t)
	h.expectNoSegment(t)
}

func TestSessionDeviceErrorIsNonFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	defer h.stop(t)

	deviceErr := errors.New("xrun")
	if !h.device.EmitError(deviceErr) {
		t.Fatal("EmitError() on a stopped device")
	}

	select {
	case err := <-h.session.Errors():
		if !errors.Is(err, deviceErr) {
			t.Errorf("Errors() delivered %v, want %v", err, deviceErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("device error not reported")
	}

	if got := h.session.State(); got != capture.Capturing {
		t.Fatalf("state = %v after device error, want capturing", got)
	}

	h.push(t, chunk(1, 8))
	h.clock.Advance(interval)
	if seg := h.nextSegment(t); len(seg.Chunks) != 1 {
		t.Errorf("segment has %d chunks, want 1", len(seg.Chunks))
	}
	if got := promtest.ToFloat64(h.metrics.DeviceErrors); got != 1 {
		t.Errorf("device errors = %v, want 1", got)
	}
}

func TestSessionReportsDeviceStreamEnd(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.push(t, chunk(1, 8), chunk(2, 8))
	h.device.EndStream()

	select {
	case err := <-h.session.Errors():
		if !errors.Is(err, recording.ErrStreamClosed) {
			t.Errorf("Errors() delivered %v, want %v", err, recording.ErrStreamClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream end not reported")
	}

	if got := h.session.State(); got != capture.Capturing {
		t.Fatalf("state = %v after stream end, want capturing until Stop", got)
	}
	if got := promtest.ToFloat64(h.metrics.DeviceErrors); got != 1 {
		t.Errorf("device errors = %v, want 1", got)
	}

	h.stop(t)
	if seg := h.nextSegment(t); len(seg.Chunks) != 2 {
		t.Errorf("final segment has %d chunks, want the 2 buffered before the stream ended", len(seg.Chunks))
	}
	if got := h.device.Stops(); got != 1 {
		t.Errorf("device stopped %d times, want 1", got)
	}
}

func TestSessionCancelDoesNotReportStreamEnd(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.session.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	h.clock.BlockUntil(1)

	cancel()
	testutil.WaitForCondition(t, func() bool { return h.session.State() == capture.Idle }, 2*time.Second)

	select {
	case err := <-h.session.Errors():
		t.Errorf("unexpected error after cancellation: %v", err)
	default:
	}
}

func TestSessionFlushAtomicityWithInterleavedTicks(t *testing.T) {
	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	var h *harness
	h = newHarness(t, capture.ProcessorFunc(func(ctx context.Context, seg capture.Segment) {
		entered <- struct{}{}
		<-release
		h.segments <- seg
	}))
	h.start(t)

	h.push(t, chunk(1, 4))
	h.clock.Advance(interval)
	<-entered

	// The first flush is blocked. New chunks go to a fresh buffer and the
	// next tick is deferred instead of starting an overlapping flush.
	h.push(t, chunk(2, 4), chunk(3, 4))
	h.clock.Advance(interval)
	testutil.WaitForCondition(t, func() bool {
		return promtest.ToFloat64(h.metrics.FlushesDeferred) == 1
	}, 2*time.Second)
	if got := h.session.Buffered(); got != 2 {
		t.Errorf("buffer holds %d chunks during deferred tick, want 2", got)
	}

	close(release)
	h.stop(t)

	first := h.nextSegment(t)
	second := h.nextSegment(t)
	h.expectNoSegment(t)

	var seen []byte
	for _, seg := range []capture.Segment{first, second} {
		for _, c := range seg.Chunks {
			seen = append(seen, c[0])
		}
	}
	if !bytes.Equal(seen, []byte{1, 2, 3}) {
		t.Errorf("chunks across segments = %v, want [1 2 3] with no duplicates", seen)
	}
	if len(first.Chunks) != 1 || len(second.Chunks) != 2 {
		t.Errorf("segment sizes = %d, %d; want 1, 2", len(first.Chunks), len(second.Chunks))
	}
}

func TestSessionRecoversFromProcessorPanic(t *testing.T) {
	calls := 0
	segments := make(chan capture.Segment, 4)
	h := newHarness(t, capture.ProcessorFunc(func(ctx context.Context, seg capture.Segment) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		segments <- seg
	}))
	h.start(t)

	h.push(t, chunk(1, 4))
	h.clock.Advance(interval)
	testutil.WaitForCondition(t, func() bool {
		return promtest.ToFloat64(h.metrics.SegmentsFlushed) == 1
	}, 2*time.Second)

	h.push(t, chunk(2, 4))
	h.stop(t)

	select {
	case seg := <-segments:
		if seg.Chunks[0][0] != 2 {
			t.Errorf("final segment starts with %d, want 2", seg.Chunks[0][0])
		}
	default:
		t.Fatal("final segment not processed after an earlier panic")
	}
}

func TestSessionRestart(t *testing.T) {
	h := newHarness(t, nil)

	h.start(t)
	h.push(t, chunk(1, 4))
	h.stop(t)
	_ = h.nextSegment(t)

	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	h.push(t, chunk(2, 4))
	h.stop(t)

	if seg := h.nextSegment(t); seg.Chunks[0][0] != 2 {
		t.Errorf("segment after restart starts with %d, want 2", seg.Chunks[0][0])
	}
	if got := h.device.Starts(); got != 2 {
		t.Errorf("device started %d times, want 2", got)
	}
}

func TestSessionContextCancelStopsAndFlushes(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := h.session.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	h.clock.BlockUntil(1)

	h.push(t, chunk(9, 4))
	cancel()

	testutil.WaitForCondition(t, func() bool { return h.session.State() == capture.Idle }, 2*time.Second)
	if seg := h.nextSegment(t); seg.Chunks[0][0] != 9 {
		t.Errorf("final segment starts with %d, want 9", seg.Chunks[0][0])
	}
}
