package notes

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestNewMarkdownAppender(t *testing.T) {
	if _, err := NewMarkdownAppender(Config{}); err == nil {
		t.Error("expected error for empty vault path")
	}

	vault := t.TempDir()
	a, err := NewMarkdownAppender(Config{VaultPath: vault})
	if err != nil {
		t.Fatalf("NewMarkdownAppender() error: %v", err)
	}
	if info, err := os.Stat(filepath.Join(vault, DefaultFolder)); err != nil || !info.IsDir() {
		t.Errorf("notes folder not created: %v", err)
	}
	if !strings.HasPrefix(a.Path(), filepath.Join(vault, DefaultFolder)) {
		t.Errorf("Path() = %q, want inside vault", a.Path())
	}
}

func TestMarkdownAppenderAppend(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local))
	vault := t.TempDir()
	a, err := NewMarkdownAppender(Config{VaultPath: vault, Folder: "Notes", Clock: clock})
	if err != nil {
		t.Fatalf("NewMarkdownAppender() error: %v", err)
	}

	ctx := context.Background()
	if err := a.Append(ctx, "- first point"); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	clock.Advance(5 * time.Second)
	if err := a.Append(ctx, "  - second point\n"); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := a.Append(ctx, "   "); err != nil {
		t.Fatalf("Append() blank error: %v", err)
	}

	path := filepath.Join(vault, "Notes", "2026-03-14.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}

	want := "# Meeting notes 2026-03-14\n" +
		"\n## 09:30:00\n\n- first point\n" +
		"\n## 09:30:05\n\n- second point\n"
	if string(data) != want {
		t.Errorf("note contents:\n%s\nwant:\n%s", data, want)
	}
}

func TestMarkdownAppenderRollsOverDays(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 23, 59, 59, 0, time.Local))
	vault := t.TempDir()
	a, err := NewMarkdownAppender(Config{VaultPath: vault, Clock: clock})
	if err != nil {
		t.Fatalf("NewMarkdownAppender() error: %v", err)
	}

	_ = a.Append(context.Background(), "late")
	clock.Advance(2 * time.Second)
	_ = a.Append(context.Background(), "early")

	for _, day := range []string{"2026-03-14.md", "2026-03-15.md"} {
		if _, err := os.Stat(filepath.Join(vault, DefaultFolder, day)); err != nil {
			t.Errorf("expected %s: %v", day, err)
		}
	}
}

func TestMarkdownAppenderConcurrent(t *testing.T) {
	vault := t.TempDir()
	a, err := NewMarkdownAppender(Config{VaultPath: vault})
	if err != nil {
		t.Fatalf("NewMarkdownAppender() error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Append(context.Background(), "entry"); err != nil {
				t.Errorf("Append() error: %v", err)
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(a.Path())
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if got := strings.Count(string(data), "# Meeting notes"); got != 1 {
		t.Errorf("header written %d times, want 1", got)
	}
	if got := strings.Count(string(data), "\nentry\n"); got != 20 {
		t.Errorf("found %d entries, want 20", got)
	}
}

func TestMarkdownAppenderCancelledContext(t *testing.T) {
	a, err := NewMarkdownAppender(Config{VaultPath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewMarkdownAppender() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Append(ctx, "text"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
