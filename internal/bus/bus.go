// Package bus is the daemon's unix-socket control channel.
package bus

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	AppDir   = "hyprscribe"
	SockName = "control.sock"
	PidName  = "hyprscribe.pid"
	ProtoVer = "0.1"
)

// Commands understood by the daemon. Each is sent as one byte plus newline.
const (
	CmdToggle  byte = 't'
	CmdStatus  byte = 's'
	CmdVersion byte = 'v'
	CmdQuit    byte = 'q'
)

const dialTimeout = 2 * time.Second

// ~/.cache/hyprscribe
func appDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppDir), nil
}

func getSockPath() (string, error) {
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SockName), nil
}

func getPidPath() (string, error) {
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PidName), nil
}

// SockPath returns ~/.cache/hyprscribe/control.sock.
func SockPath() (string, error) { return getSockPath() }

type socketManager struct {
	path string
}

func newSocketManager() (*socketManager, error) {
	p, err := getSockPath()
	if err != nil {
		return nil, err
	}
	return &socketManager{path: p}, nil
}

func (s *socketManager) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(s.path) // stale socket from last run
	return net.Listen("unix", s.path)
}

func (s *socketManager) dial() (net.Conn, error) {
	return net.DialTimeout("unix", s.path, dialTimeout)
}

func (s *socketManager) send(cmd byte) (string, error) {
	c, err := s.dial()
	if err != nil {
		return "", err
	}
	defer c.Close()

	if _, err := c.Write([]byte{cmd, '\n'}); err != nil {
		return "", err
	}
	return bufio.NewReader(c).ReadString('\n')
}

type pidManager struct {
	path string
}

func newPidManager() (*pidManager, error) {
	p, err := getPidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: p}, nil
}

func (p *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *pidManager) remove() error {
	err := os.Remove(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// checkExisting fails if the pid file names a live process. Stale or
// unreadable pid files are removed.
func (p *pidManager) checkExisting() error {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || !p.isProcessAlive(pid) {
		_ = os.Remove(p.path)
		return nil
	}
	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (p *pidManager) isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func Listen() (net.Listener, error) {
	s, err := newSocketManager()
	if err != nil {
		return nil, err
	}
	return s.listen()
}

func Dial() (net.Conn, error) {
	s, err := newSocketManager()
	if err != nil {
		return nil, err
	}
	return s.dial()
}

// SendCommand sends cmd to the running daemon and returns its one-line reply.
func SendCommand(cmd byte) (string, error) {
	s, err := newSocketManager()
	if err != nil {
		return "", err
	}
	return s.send(cmd)
}

func CheckExistingDaemon() error {
	p, err := newPidManager()
	if err != nil {
		return err
	}
	return p.checkExisting()
}

func CreatePidFile() error {
	p, err := newPidManager()
	if err != nil {
		return err
	}
	return p.create()
}

func RemovePidFile() error {
	p, err := newPidManager()
	if err != nil {
		return err
	}
	return p.remove()
}
