package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/leonardotrapani/hyprscribe/internal/metrics"
)

// Client bounds each upload with a timeout and turns every failure into an
// empty result so capture is never interrupted by the service.
type Client struct {
	adapter  Adapter
	timeout  time.Duration
	stageDir string
	clock    clockwork.Clock
	metrics  *metrics.Metrics
}

type ClientOption func(*Client)

func WithClock(clock clockwork.Clock) ClientOption {
	return func(c *Client) { c.clock = clock }
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(config Config, adapter Adapter, opts ...ClientOption) *Client {
	c := &Client{
		adapter:  adapter,
		timeout:  config.Timeout,
		stageDir: config.StageDir,
		clock:    clockwork.NewRealClock(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewUnregistered()
	}
	return c
}

// Transcribe uploads one WAV container. It never returns an error: timeouts,
// transport failures, bad statuses and malformed bodies are logged and yield
// an empty Text.
func (c *Client) Transcribe(ctx context.Context, segmentID string, container []byte, capturedAt time.Time) Result {
	result := Result{SegmentID: segmentID, CapturedAt: capturedAt}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.metrics.TranscriptionRequests.Inc()
	start := c.clock.Now()

	text, err := c.upload(ctx, segmentID, container)

	c.metrics.TranscriptionDuration.Observe(c.clock.Since(start).Seconds())
	result.CompletedAt = c.clock.Now()

	if err != nil {
		c.metrics.TranscriptionFailures.Inc()
		if se, ok := IsStatusError(err); ok {
			log.Error("transcriber: service rejected segment", "segment", segmentID, "status", se.StatusCode, "temporary", se.Temporary(), "err", err)
		} else {
			log.Error("transcriber: segment failed", "segment", segmentID, "err", err)
		}
		return result
	}

	result.Text = text
	log.Debug("transcriber: segment transcribed", "segment", segmentID, "chars", len(text))
	return result
}

func (c *Client) upload(ctx context.Context, segmentID string, container []byte) (string, error) {
	name := "segment-" + segmentID + ".wav"

	if c.stageDir == "" {
		return c.adapter.Transcribe(ctx, name, bytes.NewReader(container))
	}

	f, err := os.CreateTemp(c.stageDir, "segment-*.wav")
	if err != nil {
		return "", fmt.Errorf("stage segment: %w", err)
	}
	defer c.discard(f)

	if _, err := f.Write(container); err != nil {
		return "", fmt.Errorf("stage segment: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind staged segment: %w", err)
	}

	return c.adapter.Transcribe(ctx, name, f)
}

// discard removes a staged file on every exit path. A failed removal is
// logged and never escalated.
func (c *Client) discard(f *os.File) {
	if err := f.Close(); err != nil {
		log.Debug("transcriber: close staged segment", "path", f.Name(), "err", err)
	}
	if err := os.Remove(f.Name()); err != nil {
		c.metrics.StagingCleanupErrors.Inc()
		log.Warn("transcriber: remove staged segment", "path", f.Name(), "err", err)
	}
}
