package daemon

import (
	"bufio"
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/hyprscribe/internal/bus"
	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/metrics"
	"github.com/leonardotrapani/hyprscribe/internal/pipeline"
	"github.com/leonardotrapani/hyprscribe/internal/testutil"
)

type fakeSession struct {
	mu       sync.Mutex
	status   pipeline.Status
	startErr error
	stopErr  error
	errs     chan error
}

func newFakeSession() *fakeSession {
	return &fakeSession{status: pipeline.Idle, errs: make(chan error, 1)}
}

func (s *fakeSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.status = pipeline.Recording
	return nil
}

func (s *fakeSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = pipeline.Stopped
	return s.stopErr
}

func (s *fakeSession) Status() pipeline.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *fakeSession) Errors() <-chan error { return s.errs }

type harness struct {
	daemon   *Daemon
	notifier *testutil.MockNotifier

	mu       sync.Mutex
	sessions []*fakeSession
	buildErr error
	startErr error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mgr, err := config.NewManager(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	h := &harness{notifier: testutil.NewMockNotifier()}
	h.daemon = New(mgr,
		WithNotifier(h.notifier),
		WithMetrics(metrics.NewUnregistered()),
		WithStopTimeout(time.Second),
		WithFactory(h.build),
	)
	t.Cleanup(h.daemon.Shutdown)
	return h
}

func (h *harness) build(cfg *config.Config, m *metrics.Metrics) (Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.buildErr != nil {
		return nil, h.buildErr
	}
	s := newFakeSession()
	s.startErr = h.startErr
	h.sessions = append(h.sessions, s)
	return s, nil
}

func (h *harness) built() []*fakeSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*fakeSession(nil), h.sessions...)
}

// send runs one command through handle over an in-memory connection.
func (h *harness) send(t *testing.T, cmd byte) string {
	t.Helper()
	client, server := net.Pipe()
	defer client.Close()

	go h.daemon.handle(server)

	if err := client.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Write([]byte{cmd, '\n'}); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp
}

func TestHandleCommands(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		cmd  byte
		want string
	}{
		{bus.CmdStatus, "STATUS status=idle\n"},
		{bus.CmdVersion, "STATUS proto=" + bus.ProtoVer + "\n"},
		{'x', "ERR unknown='x'\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			if got := h.send(t, tt.cmd); got != tt.want {
				t.Errorf("response = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToggle(t *testing.T) {
	h := newHarness(t)

	if got := h.send(t, bus.CmdToggle); got != "OK recording\n" {
		t.Fatalf("first toggle = %q", got)
	}
	if got := h.send(t, bus.CmdStatus); got != "STATUS status=recording\n" {
		t.Errorf("status = %q", got)
	}

	if got := h.send(t, bus.CmdToggle); got != "OK stopped\n" {
		t.Fatalf("second toggle = %q", got)
	}
	if got := h.send(t, bus.CmdStatus); got != "STATUS status=idle\n" {
		t.Errorf("status after stop = %q", got)
	}

	if got := h.send(t, bus.CmdToggle); got != "OK recording\n" {
		t.Fatalf("third toggle = %q", got)
	}

	sessions := h.built()
	if len(sessions) != 2 {
		t.Fatalf("built %d sessions, want a fresh one per recording", len(sessions))
	}
	if sessions[0].Status() != pipeline.Stopped {
		t.Errorf("first session status = %v, want stopped", sessions[0].Status())
	}

	events := h.notifier.RecordingEvents()
	want := []bool{true, false, true}
	if len(events) != len(want) {
		t.Fatalf("recording events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("recording events = %v, want %v", events, want)
			break
		}
	}
}

func TestToggleFailures(t *testing.T) {
	tests := []struct {
		name     string
		buildErr error
		startErr error
		want     string
	}{
		{"build error", errors.New("pw-record missing"), nil, "ERR build pipeline: pw-record missing\n"},
		{"start error", nil, errors.New("device busy"), "ERR start recording: device busy\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.buildErr = tt.buildErr
			h.startErr = tt.startErr

			if got := h.send(t, bus.CmdToggle); got != tt.want {
				t.Errorf("toggle = %q, want %q", got, tt.want)
			}
			if got := h.send(t, bus.CmdStatus); got != "STATUS status=idle\n" {
				t.Errorf("status = %q", got)
			}
			if len(h.notifier.Errors()) != 1 {
				t.Errorf("notifier errors = %v", h.notifier.Errors())
			}
			if len(h.notifier.RecordingEvents()) != 0 {
				t.Errorf("recording events = %v, want none", h.notifier.RecordingEvents())
			}
		})
	}
}

func TestStopErrorIsReported(t *testing.T) {
	h := newHarness(t)
	h.send(t, bus.CmdToggle)
	h.built()[0].stopErr = errors.New("wait for pending transcriptions: deadline exceeded")

	got := h.send(t, bus.CmdToggle)
	if !strings.HasPrefix(got, "ERR stop recording:") {
		t.Errorf("toggle = %q", got)
	}
	if got := h.send(t, bus.CmdStatus); got != "STATUS status=idle\n" {
		t.Errorf("status = %q", got)
	}
}

func TestDeviceErrorsAreForwarded(t *testing.T) {
	h := newHarness(t)
	h.send(t, bus.CmdToggle)

	h.built()[0].errs <- errors.New("xrun")
	testutil.WaitForCondition(t, func() bool { return len(h.notifier.Errors()) == 1 }, 2*time.Second)

	if got := h.notifier.Errors()[0]; got != "xrun" {
		t.Errorf("forwarded error = %q", got)
	}
}

func TestServeQuitStopsRecording(t *testing.T) {
	h := newHarness(t)
	sock := filepath.Join(t.TempDir(), bus.SockName)
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- h.daemon.Serve(ln) }()

	send := func(cmd byte) string {
		c, err := net.Dial("unix", sock)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer c.Close()
		if _, err := c.Write([]byte{cmd, '\n'}); err != nil {
			t.Fatalf("write: %v", err)
		}
		resp, err := bufio.NewReader(c).ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return resp
	}

	if got := send(bus.CmdToggle); got != "OK recording\n" {
		t.Fatalf("toggle = %q", got)
	}
	if got := send(bus.CmdQuit); got != "OK quitting\n" {
		t.Fatalf("quit = %q", got)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve() error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not exit within timeout")
	}

	if s := h.built()[0].Status(); s != pipeline.Stopped {
		t.Errorf("session status after quit = %v, want stopped", s)
	}
}
