package recording

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

const (
	BackendPipeWire  = "pipewire"
	BackendPortAudio = "portaudio"
)

// Source is an input device that streams PCM frames until stopped.
type Source interface {
	Start(ctx context.Context) (<-chan AudioFrame, <-chan error, error)
	Stop() error
	Wait()
}

type Factory func(Config) (Source, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Factory{
		BackendPipeWire: func(c Config) (Source, error) { return NewRecorder(c), nil },
	}
)

// Register makes a backend available under name. Backends that need cgo
// register themselves from build-tagged files.
func Register(name string, f Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = f
}

func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the source configured by c.Backend (PipeWire when empty).
func New(c Config) (Source, error) {
	name := c.Backend
	if name == "" {
		name = BackendPipeWire
	}

	backendsMu.RLock()
	f, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		if name == BackendPortAudio {
			return nil, fmt.Errorf("backend %q not compiled in (build with -tags portaudio)", name)
		}
		return nil, fmt.Errorf("unknown recording backend: %s", name)
	}
	return f(c)
}

// Available reports whether a backend is registered in this build.
func Available(name string) bool {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	_, ok := backends[name]
	return ok
}
