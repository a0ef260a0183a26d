// Package wav builds and inspects canonical 44-byte-header PCM WAV containers.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	gowav "github.com/go-audio/wav"
)

// HeaderSize is the length of the canonical RIFF/WAVE/fmt/data header.
const HeaderSize = 44

const pcmFormat = 1

// Format describes raw PCM audio. It is fixed for the lifetime of a capture session.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is 16 kHz mono signed 16-bit little-endian, what speech models expect.
func DefaultFormat() Format {
	return Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channels: %d", f.Channels)
	}
	if f.BitsPerSample <= 0 || f.BitsPerSample%8 != 0 {
		return fmt.Errorf("invalid bits per sample: %d", f.BitsPerSample)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitsPerSample)
}

// Header is the decoded form of the 44-byte container header.
type Header struct {
	ChunkSize   uint32
	AudioFormat uint16
	Format      Format
	ByteRate    uint32
	BlockAlign  uint16
	DataLength  uint32
}

// Encode wraps raw PCM into a WAV container. Output is deterministic for the same inputs.
func Encode(pcm []byte, f Format) []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(pcm))

	dataSize := len(pcm)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))              // fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(pcmFormat))       // linear PCM
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))      // number of channels
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))    // sample rate
	binary.Write(&buf, binary.LittleEndian, uint32(f.ByteRate()))    // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(f.BlockAlign()))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample)) // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes()
}

var ErrInvalidHeader = errors.New("invalid wav header")

// DecodeHeader parses the canonical header at the start of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidHeader, len(b), HeaderSize)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrInvalidHeader)
	}
	if string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Header{}, fmt.Errorf("%w: unexpected subchunk layout", ErrInvalidHeader)
	}

	le := binary.LittleEndian
	h := Header{
		ChunkSize:   le.Uint32(b[4:8]),
		AudioFormat: le.Uint16(b[20:22]),
		Format: Format{
			Channels:      int(le.Uint16(b[22:24])),
			SampleRate:    int(le.Uint32(b[24:28])),
			BitsPerSample: int(le.Uint16(b[34:36])),
		},
		ByteRate:   le.Uint32(b[28:32]),
		BlockAlign: le.Uint16(b[32:34]),
		DataLength: le.Uint32(b[40:44]),
	}
	return h, nil
}

// Probe validates an arbitrary WAV stream and reports its format and PCM payload size.
// Unlike DecodeHeader it tolerates extra chunks (LIST, fact) written by other tools.
func Probe(r io.ReadSeeker) (Format, int64, error) {
	d := gowav.NewDecoder(r)
	if !d.IsValidFile() {
		if d.Err() != nil {
			return Format{}, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, d.Err())
		}
		return Format{}, 0, ErrInvalidHeader
	}
	if d.WavAudioFormat != pcmFormat {
		return Format{}, 0, fmt.Errorf("unsupported wav audio format %d (only PCM)", d.WavAudioFormat)
	}
	if err := d.FwdToPCM(); err != nil {
		return Format{}, 0, fmt.Errorf("seek to pcm data: %w", err)
	}

	f := Format{
		SampleRate:    int(d.SampleRate),
		Channels:      int(d.NumChans),
		BitsPerSample: int(d.BitDepth),
	}
	return f, d.PCMLen(), nil
}
