// Package deps reports on the external tools hyprscribe shells out to.
package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 2 * time.Second

// Status represents the installation status of a dependency
type Status struct {
	Installed bool
	Path      string
	Version   string
}

// Tool is an external program the daemon may run.
type Tool struct {
	Name        string
	VersionArg  string
	Required    bool
	Description string
}

var Tools = []Tool{
	{Name: "pw-record", VersionArg: "--version", Required: true, Description: "PipeWire capture (recording.backend = pipewire)"},
	{Name: "pw-cli", VersionArg: "--version", Description: "PipeWire server probe"},
	{Name: "notify-send", VersionArg: "--version", Description: "desktop notifications"},
}

// Check looks name up on PATH and, when found, reads the first line printed
// by name versionArg.
func Check(name, versionArg string) Status {
	path, err := exec.LookPath(name)
	if err != nil {
		return Status{Installed: false}
	}

	status := Status{
		Installed: true,
		Path:      path,
	}
	if versionArg == "" {
		return status
	}

	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, path, versionArg).Output()
	if err == nil {
		status.Version = firstLine(string(output))
	}
	return status
}

// CheckPipeWire checks if pw-record is installed and returns its status
func CheckPipeWire() Status {
	return Check("pw-record", "--version")
}

// CheckNotifySend checks if notify-send is installed and returns its status
func CheckNotifySend() Status {
	return Check("notify-send", "--version")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
