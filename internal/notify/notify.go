package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/beeep"
)

const (
	appName = "Hyprscribe"

	TypeDesktop = "desktop"
	TypeLog     = "log"
	TypeNone    = "none"

	// Desktop popups are cut to this many runes.
	maxBodyRunes = 240
)

type Notifier interface {
	RecordingChanged(on bool)
	Transcription(text string) error
	Error(msg string)
	Notify(title, message string)
}

// New returns the notifier for a config type. Unknown types fall back to Log.
func New(kind string) Notifier {
	switch kind {
	case TypeDesktop, "":
		return Desktop{}
	case TypeNone:
		return Nop{}
	case TypeLog:
		return Log{}
	default:
		log.Warn("notify: unknown notification type, using log", "type", kind)
		return Log{}
	}
}

// send is swapped in tests.
var send = func(title, message string) error {
	return beeep.Notify(title, message, "")
}

type Desktop struct{}

func (Desktop) RecordingChanged(on bool) {
	state := "Stopped"
	if on {
		state = "Started"
	}
	if err := send(appName, fmt.Sprintf("%s Recording", state)); err != nil {
		log.Warn("notify: failed to send notification", "err", err)
	}
}

func (Desktop) Transcription(text string) error {
	if err := send(appName+": New notes", truncate(text, maxBodyRunes)); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

func (Desktop) Error(msg string) {
	if err := send(appName+" Error", msg); err != nil {
		log.Warn("notify: failed to send error notification", "err", err)
	}
}

func (Desktop) Notify(title, message string) {
	if err := send(appName+": "+title, message); err != nil {
		log.Warn("notify: failed to send notification", "err", err)
	}
}

// Log writes notifications to the logger instead of the desktop.
type Log struct{}

func (Log) RecordingChanged(on bool) {
	if on {
		log.Info(appName + ": Recording Started")
		return
	}
	log.Info(appName + ": Recording Stopped")
}

func (Log) Transcription(text string) error {
	log.Info(appName+": New notes", "text", text)
	return nil
}

func (Log) Error(msg string) {
	log.Error(appName+" Error", "msg", msg)
}

func (Log) Notify(title, message string) {
	log.Info(appName+": "+title, "msg", message)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) RecordingChanged(on bool)        {}
func (Nop) Transcription(text string) error { return nil }
func (Nop) Error(msg string)                {}
func (Nop) Notify(title, message string)    {}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
