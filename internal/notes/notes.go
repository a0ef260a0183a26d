// Package notes appends structured transcriptions to a markdown vault.
package notes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
)

const DefaultFolder = "Meetings"

// Appender receives every non-empty structured transcription.
type Appender interface {
	Append(ctx context.Context, text string) error
}

type Config struct {
	VaultPath string
	Folder    string
	Clock     clockwork.Clock
}

// MarkdownAppender writes one file per day under VaultPath/Folder, each entry
// under a timestamp heading.
type MarkdownAppender struct {
	dir   string
	clock clockwork.Clock

	mu sync.Mutex
}

func NewMarkdownAppender(cfg Config) (*MarkdownAppender, error) {
	if cfg.VaultPath == "" {
		return nil, fmt.Errorf("vault path required")
	}
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	dir := filepath.Join(cfg.VaultPath, cfg.Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create notes folder: %w", err)
	}

	return &MarkdownAppender{dir: dir, clock: cfg.Clock}, nil
}

// Path returns the note file entries are written to right now.
func (a *MarkdownAppender) Path() string {
	return filepath.Join(a.dir, a.clock.Now().Format("2006-01-02")+".md")
}

func (a *MarkdownAppender) Append(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	path := filepath.Join(a.dir, now.Format("2006-01-02")+".md")

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open note: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	if isNew {
		fmt.Fprintf(&b, "# Meeting notes %s\n", now.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "\n## %s\n\n%s\n", now.Format("15:04:05"), text)

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write note: %w", err)
	}

	log.Debug("notes: appended", "path", path, "chars", len(text))
	return nil
}

// Discard drops every entry. Used when no vault is configured.
type Discard struct{}

func (Discard) Append(context.Context, string) error { return nil }
