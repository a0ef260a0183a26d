package bus

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPidManagerBasics(t *testing.T) {
	testPidManager := &pidManager{
		path: filepath.Join(t.TempDir(), PidName),
	}

	t.Run("create and remove PID file", func(t *testing.T) {
		if err := testPidManager.create(); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		pidData, err := os.ReadFile(testPidManager.path)
		if err != nil {
			t.Fatalf("failed to read PID file: %v", err)
		}
		expectedPid := strconv.Itoa(os.Getpid())
		if string(pidData) != expectedPid {
			t.Errorf("PID file contains %q, expected %q", string(pidData), expectedPid)
		}

		if err := testPidManager.remove(); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if _, err := os.Stat(testPidManager.path); !os.IsNotExist(err) {
			t.Error("PID file should not exist after removal")
		}
	})

	t.Run("remove missing PID file", func(t *testing.T) {
		if err := testPidManager.remove(); err != nil {
			t.Errorf("remove of a missing file should succeed: %v", err)
		}
	})

	t.Run("checkExisting with no PID file", func(t *testing.T) {
		if err := testPidManager.checkExisting(); err != nil {
			t.Errorf("checkExisting should not error when no PID file exists: %v", err)
		}
	})

	t.Run("checkExisting with current process", func(t *testing.T) {
		if err := testPidManager.create(); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		defer testPidManager.remove()

		if err := testPidManager.checkExisting(); err == nil {
			t.Error("checkExisting should fail when process is running")
		}
	})

	for _, tt := range []struct {
		name    string
		content string
	}{
		{"stale PID file", "99999999"},
		{"invalid PID file", "invalid"},
		{"negative PID", "-4"},
	} {
		t.Run("checkExisting with "+tt.name, func(t *testing.T) {
			if err := os.WriteFile(testPidManager.path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("failed to write PID file: %v", err)
			}
			if err := testPidManager.checkExisting(); err != nil {
				t.Errorf("checkExisting should succeed: %v", err)
			}
			if _, err := os.Stat(testPidManager.path); !os.IsNotExist(err) {
				t.Error("PID file should be removed")
			}
		})
	}
}

func TestIsProcessAlive(t *testing.T) {
	pm := &pidManager{}

	if !pm.isProcessAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if pm.isProcessAlive(99999999) {
		t.Error("non-existent process should not be alive")
	}
	if pm.isProcessAlive(0) {
		t.Error("pid 0 should not be alive")
	}
}

// serve answers each connection the way the daemon does.
func serve(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				line, err := bufio.NewReader(c).ReadString('\n')
				if err != nil || len(line) == 0 {
					return
				}
				switch cmd := line[0]; cmd {
				case CmdToggle:
					fmt.Fprint(c, "OK toggled\n")
				case CmdStatus:
					fmt.Fprint(c, "STATUS status=idle\n")
				case CmdVersion:
					fmt.Fprintf(c, "STATUS proto=%s\n", ProtoVer)
				case CmdQuit:
					fmt.Fprint(c, "OK quitting\n")
				default:
					fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
				}
			}(conn)
		}
	}()
}

func TestSocketManagerSend(t *testing.T) {
	sm := &socketManager{path: filepath.Join(t.TempDir(), SockName)}

	if _, err := sm.send(CmdStatus); err == nil {
		t.Fatal("send should fail when no listener exists")
	}

	ln, err := sm.listen()
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()
	serve(t, ln)

	tests := []struct {
		cmd      byte
		expected string
	}{
		{CmdToggle, "OK toggled\n"},
		{CmdStatus, "STATUS status=idle\n"},
		{CmdVersion, fmt.Sprintf("STATUS proto=%s\n", ProtoVer)},
		{CmdQuit, "OK quitting\n"},
		{'x', "ERR unknown='x'\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			resp, err := sm.send(tt.cmd)
			if err != nil {
				t.Fatalf("send failed: %v", err)
			}
			if resp != tt.expected {
				t.Errorf("got %q, expected %q", resp, tt.expected)
			}
		})
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	sm := &socketManager{path: filepath.Join(t.TempDir(), "nested", SockName)}
	if err := os.MkdirAll(filepath.Dir(sm.path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sm.path, []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}

	ln, err := sm.listen()
	if err != nil {
		t.Fatalf("listen over stale socket failed: %v", err)
	}
	ln.Close()
}

func TestPublicAPI(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	sp, err := SockPath()
	if err != nil {
		t.Fatalf("SockPath failed: %v", err)
	}
	if filepath.Base(sp) != SockName || filepath.Base(filepath.Dir(sp)) != AppDir {
		t.Errorf("unexpected socket path %s", sp)
	}

	pidPath, err := getPidPath()
	if err != nil {
		t.Fatalf("getPidPath failed: %v", err)
	}

	if err := CheckExistingDaemon(); err != nil {
		t.Errorf("CheckExistingDaemon should succeed when no daemon running: %v", err)
	}
	if err := CreatePidFile(); err != nil {
		t.Fatalf("CreatePidFile failed: %v", err)
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Errorf("PID file should exist after CreatePidFile: %v", err)
	}
	if err := CheckExistingDaemon(); err == nil {
		t.Error("CheckExistingDaemon should fail while our own PID is recorded")
	}
	if err := RemovePidFile(); err != nil {
		t.Fatalf("RemovePidFile failed: %v", err)
	}

	ln, err := Listen()
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()
	serve(t, ln)

	resp, err := SendCommand(CmdVersion)
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if resp != "STATUS proto="+ProtoVer+"\n" {
		t.Errorf("SendCommand = %q", resp)
	}
}
