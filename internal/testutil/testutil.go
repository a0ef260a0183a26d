package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/llm"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
)

// TestConfig returns a valid configuration for testing
func TestConfig() *config.Config {
	c := config.DefaultConfig()
	c.Transcription.APIKey = "test-api-key"
	c.Notifications.Type = "log"
	return c
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// FakeDevice is an input device driven by the test. Pushed frames are relayed
// to the consumer in order; Stop closes the stream.
type FakeDevice struct {
	StartError error

	mu     sync.Mutex
	starts int
	stops  int
	in     chan recording.AudioFrame
	errs   chan error
	stop   chan struct{}
	end    chan struct{}
	done   chan struct{}
}

func NewFakeDevice() *FakeDevice {
	return &FakeDevice{}
}

func (d *FakeDevice) Start(ctx context.Context) (<-chan recording.AudioFrame, <-chan error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.starts++
	if d.StartError != nil {
		return nil, nil, d.StartError
	}

	in := make(chan recording.AudioFrame)
	errIn := make(chan error)
	stop := make(chan struct{})
	end := make(chan struct{})
	done := make(chan struct{})
	d.in, d.errs, d.stop, d.end, d.done = in, errIn, stop, end, done

	frames := make(chan recording.AudioFrame, 64)
	errs := make(chan error, 8)

	go func() {
		defer close(done)
		defer close(errs)
		defer close(frames)

		for {
			select {
			case f := <-in:
				select {
				case frames <- f:
				case <-stop:
					return
				}
			case err := <-errIn:
				select {
				case errs <- err:
				default:
				}
			case <-stop:
				return
			case <-end:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return frames, errs, nil
}

func (d *FakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
		d.stops++
	}
	return nil
}

// EndStream closes the stream as if the device went away on its own.
func (d *FakeDevice) EndStream() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.end != nil {
		close(d.end)
		d.end = nil
	}
}

func (d *FakeDevice) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (d *FakeDevice) current() (chan recording.AudioFrame, chan error, chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in, d.errs, d.done
}

// Push hands one chunk to the device stream. It reports false when the
// device is not running.
func (d *FakeDevice) Push(data []byte) bool {
	in, _, done := d.current()
	if in == nil {
		return false
	}
	select {
	case in <- recording.AudioFrame{Data: data, Timestamp: time.Now()}:
		return true
	case <-done:
		return false
	}
}

// EmitError reports a device error on the error stream.
func (d *FakeDevice) EmitError(err error) bool {
	_, errs, done := d.current()
	if errs == nil {
		return false
	}
	select {
	case errs <- err:
		return true
	case <-done:
		return false
	}
}

func (d *FakeDevice) Starts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

func (d *FakeDevice) Stops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

// MockTranscriber records every container it receives and answers with Text.
type MockTranscriber struct {
	Text string
	// TranscribeFunc overrides Text when set.
	TranscribeFunc func(ctx context.Context, segmentID string, container []byte) string

	mu         sync.Mutex
	containers [][]byte
}

func NewMockTranscriber(text string) *MockTranscriber {
	return &MockTranscriber{Text: text}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, segmentID string, container []byte, capturedAt time.Time) transcriber.Result {
	m.mu.Lock()
	m.containers = append(m.containers, container)
	m.mu.Unlock()

	text := m.Text
	if m.TranscribeFunc != nil {
		text = m.TranscribeFunc(ctx, segmentID, container)
	}
	return transcriber.Result{
		SegmentID:   segmentID,
		Text:        text,
		CapturedAt:  capturedAt,
		CompletedAt: time.Now(),
	}
}

func (m *MockTranscriber) Containers() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.containers))
	copy(out, m.containers)
	return out
}

// MockLLMAdapter implements llm.Adapter for testing
type MockLLMAdapter struct {
	Output string
	Err    error

	mu       sync.Mutex
	requests []llm.Request
}

func NewMockLLMAdapter(output string) *MockLLMAdapter {
	return &MockLLMAdapter{Output: output}
}

func (m *MockLLMAdapter) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.Output, nil
}

func (m *MockLLMAdapter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// MockAppender implements notes.Appender for testing
type MockAppender struct {
	AppendError error
	AppendPanic any

	mu      sync.Mutex
	entries []string
}

func NewMockAppender() *MockAppender {
	return &MockAppender{}
}

func (m *MockAppender) Append(ctx context.Context, text string) error {
	if m.AppendPanic != nil {
		panic(m.AppendPanic)
	}
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	m.entries = append(m.entries, text)
	m.mu.Unlock()
	return nil
}

func (m *MockAppender) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	copy(out, m.entries)
	return out
}

// MockNotifier implements notify.Notifier for testing
type MockNotifier struct {
	TranscriptionError error
	TranscriptionPanic any

	mu             sync.Mutex
	recording      []bool
	transcriptions []string
	errors         []string
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) RecordingChanged(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recording = append(m.recording, on)
}

func (m *MockNotifier) Transcription(text string) error {
	if m.TranscriptionPanic != nil {
		panic(m.TranscriptionPanic)
	}
	m.mu.Lock()
	m.transcriptions = append(m.transcriptions, text)
	m.mu.Unlock()
	return m.TranscriptionError
}

func (m *MockNotifier) Error(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *MockNotifier) Notify(title, message string) {}

func (m *MockNotifier) Transcriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.transcriptions))
	copy(out, m.transcriptions)
	return out
}

func (m *MockNotifier) RecordingEvents() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.recording))
	copy(out, m.recording)
	return out
}

func (m *MockNotifier) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.errors))
	copy(out, m.errors)
	return out
}
