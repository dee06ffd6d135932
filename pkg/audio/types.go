// ABOUTME: Audio format and buffer definitions
// ABOUTME: Defines sample formats, PCM buffers and exact sample conversion rules
package audio

import (
	"errors"
	"fmt"
	"time"
)

// MaxBufferBytes bounds a single buffer allocation.
const MaxBufferBytes = 64 << 20

// ErrBufferAllocation is returned when a buffer allocation request is invalid
// or exceeds MaxBufferBytes.
var ErrBufferAllocation = errors.New("audio: buffer allocation failed")

// Format describes a PCM sample format.
//
// Float implies BitDepth == 32; Validate enforces the invariant.
type Format struct {
	SampleRate  float64
	Channels    int
	BitDepth    int // 16, 24 or 32
	Interleaved bool
	Float       bool
}

// Validate checks the format invariants.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %v", f.SampleRate)
	}
	if f.Channels < 1 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.BitDepth != 16 && f.BitDepth != 24 && f.BitDepth != 32 {
		return fmt.Errorf("invalid bit depth: %d", f.BitDepth)
	}
	if f.Float && f.BitDepth != 32 {
		return fmt.Errorf("float format requires 32-bit depth, got %d", f.BitDepth)
	}
	return nil
}

// Equal reports whether two formats match field-wise.
func (f Format) Equal(other Format) bool {
	return f == other
}

// BytesPerSample returns the storage size of one sample.
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// BytesPerFrame returns the storage size of one frame. For non-interleaved
// formats a frame spans a single channel's sample, matching the per-channel
// block layout.
func (f Format) BytesPerFrame() int {
	if f.Interleaved {
		return f.BytesPerSample() * f.Channels
	}
	return f.BytesPerSample()
}

// String returns a human-readable description.
func (f Format) String() string {
	kind := "int"
	if f.Float {
		kind = "float"
	}
	layout := "interleaved"
	if !f.Interleaved {
		layout = "planar"
	}
	return fmt.Sprintf("%gHz/%dch/%d-bit %s %s", f.SampleRate, f.Channels, f.BitDepth, kind, layout)
}

// DefaultFormat is the default capture format (48kHz stereo float32 planar).
func DefaultFormat() Format {
	return Format{SampleRate: 48000, Channels: 2, BitDepth: 32, Interleaved: false, Float: true}
}

// StandardWAV is the standard file format (48kHz stereo 16-bit interleaved).
func StandardWAV() Format {
	return Format{SampleRate: 48000, Channels: 2, BitDepth: 16, Interleaved: true}
}

// CDQuality is 44.1kHz stereo 16-bit interleaved.
func CDQuality() Format {
	return Format{SampleRate: 44100, Channels: 2, BitDepth: 16, Interleaved: true}
}

// HighQuality is 96kHz stereo 24-bit interleaved.
func HighQuality() Format {
	return Format{SampleRate: 96000, Channels: 2, BitDepth: 24, Interleaved: true}
}

// Buffer holds one block of PCM audio in its native byte layout.
//
// Interleaved data stores frames consecutively (LRLR...); planar data stores
// one contiguous block per channel. A buffer handed to more than one
// consumer is read-only from that point on; consumers that need to mutate
// must Clone first.
type Buffer struct {
	Format     Format
	Frames     int
	Data       []byte
	CapturedAt time.Time
}

// NewBuffer allocates a zeroed buffer for the given format and frame count.
func NewBuffer(format Format, frames int) (*Buffer, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBufferAllocation, err)
	}
	if frames < 0 {
		return nil, fmt.Errorf("%w: negative frame count %d", ErrBufferAllocation, frames)
	}
	size := frames * format.Channels * format.BytesPerSample()
	if size > MaxBufferBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrBufferAllocation, size)
	}
	return &Buffer{
		Format:     format,
		Frames:     frames,
		Data:       make([]byte, size),
		CapturedAt: time.Now(),
	}, nil
}

// Duration returns the buffer's play time.
func (b *Buffer) Duration() time.Duration {
	if b.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames) / b.Format.SampleRate * float64(time.Second))
}

// Clone returns a deep copy. The copy keeps the original capture timestamp.
func (b *Buffer) Clone() *Buffer {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return &Buffer{Format: b.Format, Frames: b.Frames, Data: data, CapturedAt: b.CapturedAt}
}

// Channel returns the raw byte block for one channel of a planar buffer.
// It returns nil for interleaved buffers.
func (b *Buffer) Channel(ch int) []byte {
	if b.Format.Interleaved || ch < 0 || ch >= b.Format.Channels {
		return nil
	}
	blockSize := b.Frames * b.Format.BytesPerSample()
	return b.Data[ch*blockSize : (ch+1)*blockSize]
}

// Samples decodes one channel to float64 regardless of layout.
func (b *Buffer) Samples(ch int) []float64 {
	if ch < 0 || ch >= b.Format.Channels {
		return nil
	}
	out := make([]float64, b.Frames)
	for f := 0; f < b.Frames; f++ {
		out[f] = b.Sample(ch, f)
	}
	return out
}

// Sample decodes a single sample to float64.
func (b *Buffer) Sample(ch, frame int) float64 {
	return decodeSample(b.Data, b.sampleIndex(ch, frame), b.Format)
}

// SetSample encodes a single float64 sample into the buffer.
func (b *Buffer) SetSample(ch, frame int, v float64) {
	encodeSample(b.Data, b.sampleIndex(ch, frame), b.Format, v)
}

func (b *Buffer) sampleIndex(ch, frame int) int {
	if b.Format.Interleaved {
		return frame*b.Format.Channels + ch
	}
	return ch*b.Frames + frame
}

// decodeSample reads the sample at flat index i as float64 in [-1, 1].
func decodeSample(data []byte, i int, f Format) float64 {
	off := i * f.BytesPerSample()
	switch {
	case f.Float:
		return float64(float32FromBytes(data[off:]))
	case f.BitDepth == 16:
		return Int16ToFloat(int16FromBytes(data[off:]))
	case f.BitDepth == 24:
		return float64(int24FromBytes(data[off:])) / 8388607.0
	default: // 32-bit int
		return float64(int32FromBytes(data[off:])) / 2147483647.0
	}
}

// encodeSample writes v at flat index i using clamp-then-truncate scaling.
func encodeSample(data []byte, i int, f Format, v float64) {
	off := i * f.BytesPerSample()
	switch {
	case f.Float:
		float32ToBytes(data[off:], float32(v))
	case f.BitDepth == 16:
		int16ToBytes(data[off:], FloatToInt16(v))
	case f.BitDepth == 24:
		int24ToBytes(data[off:], int32(clamp(v)*8388607.0))
	default:
		int32ToBytes(data[off:], int32(clamp(v)*2147483647.0))
	}
}

// FloatToInt16 converts a float sample to int16 using the exact
// clamp-then-truncate rule: clamp to [-1, 1], scale by 32767, truncate.
// +1.0 maps to 32767 and -1.0 maps to -32767.
func FloatToInt16(v float64) int16 {
	return int16(clamp(v) * 32767.0)
}

// Int16ToFloat is the inverse scaling of FloatToInt16.
func Int16ToFloat(v int16) float64 {
	return float64(v) / 32767.0
}

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
