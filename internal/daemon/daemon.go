// Package daemon owns the control socket and runs one recording session per
// toggle.
package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/leonardotrapani/hyprscribe/internal/bus"
	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/metrics"
	"github.com/leonardotrapani/hyprscribe/internal/notify"
	"github.com/leonardotrapani/hyprscribe/internal/pipeline"
)

// DefaultStopTimeout bounds how long a toggle-off waits for pending
// transcriptions before abandoning them.
const DefaultStopTimeout = 2 * time.Minute

// Session is the part of *pipeline.Pipeline the daemon drives.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() pipeline.Status
	Errors() <-chan error
}

// Factory builds a fresh session from the current config.
type Factory func(cfg *config.Config, m *metrics.Metrics) (Session, error)

func defaultFactory(cfg *config.Config, m *metrics.Metrics) (Session, error) {
	p, err := pipeline.FromConfig(cfg, m, nil)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type Option func(*Daemon)

// WithFactory replaces the pipeline builder.
func WithFactory(f Factory) Option {
	return func(d *Daemon) { d.newSession = f }
}

// WithNotifier overrides the notifier chosen from config.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Daemon) { d.notifier = n }
}

func WithStopTimeout(timeout time.Duration) Option {
	return func(d *Daemon) { d.stopTimeout = timeout }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Daemon) { d.metrics = m }
}

type Daemon struct {
	configMgr   *config.Manager
	metrics     *metrics.Metrics
	notifier    notify.Notifier
	newSession  Factory
	stopTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// toggleMu serializes toggles; mu guards session.
	toggleMu   sync.Mutex
	mu         sync.RWMutex
	session    Session
	sessionEnd chan struct{}
}

func New(mgr *config.Manager, opts ...Option) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		configMgr:   mgr,
		newSession:  defaultFactory,
		stopTimeout: DefaultStopTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		d.metrics = metrics.New(reg)
	}
	if d.notifier == nil {
		d.notifier = notifierFor(mgr.GetConfig())
	}
	return d
}

func notifierFor(cfg *config.Config) notify.Notifier {
	if !cfg.Notifications.Enabled {
		return notify.Nop{}
	}
	return notify.New(cfg.Notifications.Type)
}

func (d *Daemon) status() pipeline.Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session == nil {
		return pipeline.Idle
	}
	if s := d.session.Status(); s == pipeline.Recording || s == pipeline.Stopping {
		return s
	}
	return pipeline.Idle
}

// Run claims the pid file and control socket, then serves until a quit
// command or SIGINT/SIGTERM.
func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("Daemon: received signal, shutting down", "signal", sig)
			d.cancel()
		case <-d.ctx.Done():
		}
	}()

	if err := d.configMgr.StartWatching(d.ctx); err != nil {
		log.Warn("Daemon: config watching disabled", "err", err)
	}
	defer d.configMgr.Stop()

	if addr := d.configMgr.GetConfig().General.MetricsAddr; addr != "" {
		srv := d.serveMetrics(addr)
		defer srv.Close()
	}

	return d.Serve(ln)
}

func (d *Daemon) serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Daemon: serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Daemon: metrics server failed", "err", err)
		}
	}()
	return srv
}

// Serve accepts control connections on ln until the daemon is cancelled.
// An active recording is stopped before Serve returns.
func (d *Daemon) Serve(ln net.Listener) error {
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	log.Info("Daemon: listening", "addr", ln.Addr())

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		d.shutdown()
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Info("Daemon: shutdown requested")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.handle(c)
		}()
	}
}

// Shutdown asks Serve to return.
func (d *Daemon) Shutdown() {
	d.cancel()
}

func (d *Daemon) shutdown() {
	d.toggleMu.Lock()
	defer d.toggleMu.Unlock()
	if d.status() != pipeline.Recording {
		return
	}
	if err := d.stopRecording(); err != nil {
		log.Error("Daemon: stop on shutdown", "err", err)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Debug("Daemon: client read error", "err", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}

	switch cmd := line[0]; cmd {
	case bus.CmdToggle:
		resp, err := d.toggle()
		if err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(c, "OK %s\n", resp)
	case bus.CmdStatus:
		fmt.Fprintf(c, "STATUS status=%s\n", d.status())
	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	default:
		log.Warn("Daemon: unknown command", "cmd", string(cmd))
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}

func (d *Daemon) toggle() (string, error) {
	d.toggleMu.Lock()
	defer d.toggleMu.Unlock()

	if d.status() == pipeline.Recording {
		if err := d.stopRecording(); err != nil {
			return "", err
		}
		return "stopped", nil
	}
	if err := d.startRecording(); err != nil {
		return "", err
	}
	return "recording", nil
}

func (d *Daemon) startRecording() error {
	cfg := d.configMgr.GetConfig()
	s, err := d.newSession(cfg, d.metrics)
	if err != nil {
		d.notifier.Error(err.Error())
		return fmt.Errorf("build pipeline: %w", err)
	}
	if err := s.Start(d.ctx); err != nil {
		d.notifier.Error(err.Error())
		return fmt.Errorf("start recording: %w", err)
	}

	end := make(chan struct{})
	d.mu.Lock()
	d.session = s
	d.sessionEnd = end
	d.mu.Unlock()

	go d.forwardErrors(s.Errors(), end)
	d.notifier.RecordingChanged(true)
	return nil
}

func (d *Daemon) stopRecording() error {
	d.mu.RLock()
	s, end := d.session, d.sessionEnd
	d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.stopTimeout)
	defer cancel()

	err := s.Stop(ctx)
	close(end)
	d.notifier.RecordingChanged(false)

	if err != nil {
		d.notifier.Error(err.Error())
		return fmt.Errorf("stop recording: %w", err)
	}
	return nil
}

// forwardErrors surfaces device errors until the session ends.
func (d *Daemon) forwardErrors(errs <-chan error, end <-chan struct{}) {
	for {
		select {
		case err := <-errs:
			d.notifier.Error(err.Error())
		case <-end:
			return
		}
	}
}
