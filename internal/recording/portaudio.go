//go:build portaudio

package recording

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

func init() {
	Register(BackendPortAudio, func(c Config) (Source, error) { return NewPortAudioRecorder(c), nil })
}

// PortAudioRecorder reads 16-bit frames from the default PortAudio input device.
type PortAudioRecorder struct {
	config    Config
	recording atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewPortAudioRecorder(config Config) *PortAudioRecorder {
	return &PortAudioRecorder{config: config}
}

func (r *PortAudioRecorder) Start(ctx context.Context) (<-chan AudioFrame, <-chan error, error) {
	if r.recording.Load() {
		return nil, nil, fmt.Errorf("already recording")
	}
	if err := r.config.Validate(); err != nil {
		return nil, nil, err
	}
	f, err := r.config.WavFormat()
	if err != nil {
		return nil, nil, err
	}
	if f.BitsPerSample != 16 {
		return nil, nil, fmt.Errorf("portaudio backend supports s16 only, got %s", r.config.Format)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	framesPerBuffer := r.config.BufferSize / f.BlockAlign()
	samples := make([]int16, framesPerBuffer*r.config.Channels)
	stream, err := portaudio.OpenDefaultStream(r.config.Channels, 0, float64(r.config.SampleRate), framesPerBuffer, samples)
	if err != nil {
		portaudio.Terminate()
		return nil, nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, nil, fmt.Errorf("start input stream: %w", err)
	}

	recordingCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	frameCh := make(chan AudioFrame, r.config.ChannelBufferSize)
	errCh := make(chan error, 1)

	r.recording.Store(true)
	r.wg.Add(1)
	go r.readLoop(recordingCtx, stream, samples, frameCh, errCh)

	return frameCh, errCh, nil
}

func (r *PortAudioRecorder) readLoop(ctx context.Context, stream *portaudio.Stream, samples []int16, frameCh chan<- AudioFrame, errCh chan<- error) {
	defer func() {
		stream.Stop()
		stream.Close()
		portaudio.Terminate()
		close(frameCh)
		close(errCh)
		r.recording.Store(false)
		r.wg.Done()
	}()

	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			// Overflows are transient; report and keep reading.
			select {
			case errCh <- fmt.Errorf("read audio: %w", err):
			default:
			}
			log.Warn("recording: portaudio read failed", "err", err)
			continue
		}

		data := make([]byte, len(samples)*2)
		for i, s := range samples {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
		}

		select {
		case frameCh <- AudioFrame{Data: data, Timestamp: time.Now()}:
		case <-ctx.Done():
			return
		}
	}
}

func (r *PortAudioRecorder) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (r *PortAudioRecorder) Wait() {
	r.wg.Wait()
}
