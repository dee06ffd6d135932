// ABOUTME: Binary wire codec for the network audio stream
// ABOUTME: Encodes and decodes format headers, audio packets and end packets
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// Wire protocol constants. All multi-byte integers are little-endian.
const (
	Version = 1

	PacketTypeAudio = 0x01
	PacketTypeEnd   = 0xFF

	// Keepalive bytes may appear between packets and are skipped on read.
	keepaliveByte = 0x00

	// HeaderSize is the fixed format header length:
	// magic(5) + version(1) + rate(4) + channels(2) + depth(2) + flags(4).
	HeaderSize = 18

	flagFloat       = 0x01
	flagInterleaved = 0x02
)

// Magic identifies the stream format header.
var Magic = []byte("AUDIO")

// ErrBadMagic is returned when a header does not start with the protocol magic.
var ErrBadMagic = errors.New("protocol: bad magic")

// ErrBadVersion is returned for unsupported protocol versions.
var ErrBadVersion = errors.New("protocol: unsupported version")

// ErrBadPacket is returned for malformed or unknown packets.
var ErrBadPacket = errors.New("protocol: malformed packet")

// Packet is one decoded wire packet. Buffer is nil for end packets.
type Packet struct {
	Type            byte
	TimestampMicros uint64
	Buffer          *audio.Buffer
}

// EncodeHeader encodes the format header sent once per connection.
func EncodeHeader(f audio.Format) []byte {
	out := make([]byte, 0, HeaderSize)
	out = append(out, Magic...)
	out = append(out, Version)
	out = binary.LittleEndian.AppendUint32(out, uint32(f.SampleRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(f.Channels))
	out = binary.LittleEndian.AppendUint16(out, uint16(f.BitDepth))

	var flags uint32
	if f.Float {
		flags |= flagFloat
	}
	if f.Interleaved {
		flags |= flagInterleaved
	}
	out = binary.LittleEndian.AppendUint32(out, flags)
	return out
}

// DecodeHeader parses a format header.
func DecodeHeader(b []byte) (audio.Format, error) {
	if len(b) < HeaderSize {
		return audio.Format{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrBadPacket, HeaderSize, len(b))
	}
	if !bytes.Equal(b[:5], Magic) {
		return audio.Format{}, ErrBadMagic
	}
	if b[5] != Version {
		return audio.Format{}, fmt.Errorf("%w: %d", ErrBadVersion, b[5])
	}

	flags := binary.LittleEndian.Uint32(b[14:18])
	return audio.Format{
		SampleRate:  float64(binary.LittleEndian.Uint32(b[6:10])),
		Channels:    int(binary.LittleEndian.Uint16(b[10:12])),
		BitDepth:    int(binary.LittleEndian.Uint16(b[12:14])),
		Float:       flags&flagFloat != 0,
		Interleaved: flags&flagInterleaved != 0,
	}, nil
}

// EncodePacket encodes one audio buffer as a wire packet. The payload is
// always interleaved: planar buffers are interleaved during encoding because
// cross-process consumers cannot be assumed to handle planar layouts. The
// timestamp is microseconds since epochStart.
func EncodePacket(buf *audio.Buffer, epochStart time.Time) []byte {
	payload := interleavedPayload(buf)

	out := make([]byte, 0, 1+8+4+len(payload))
	out = append(out, PacketTypeAudio)
	out = binary.LittleEndian.AppendUint64(out, timestampMicros(buf.CapturedAt, epochStart))
	out = binary.LittleEndian.AppendUint32(out, uint32(buf.Frames))
	out = append(out, payload...)
	return out
}

// EncodeEndPacket encodes the end-of-stream marker.
func EncodeEndPacket(epochStart time.Time) []byte {
	out := make([]byte, 0, 9)
	out = append(out, PacketTypeEnd)
	out = binary.LittleEndian.AppendUint64(out, timestampMicros(time.Now(), epochStart))
	return out
}

// ReadHeader reads and parses the format header from a stream.
func ReadHeader(r io.Reader) (audio.Format, error) {
	b := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return audio.Format{}, fmt.Errorf("protocol: read header: %w", err)
	}
	return DecodeHeader(b)
}

// ReadPacket reads the next packet from a stream. Keepalive bytes between
// packets are skipped. The stream format comes from the connection header;
// decoded audio buffers are always interleaved regardless of the source
// layout flag.
func ReadPacket(r io.Reader, f audio.Format) (*Packet, error) {
	var typ [1]byte
	for {
		if _, err := io.ReadFull(r, typ[:]); err != nil {
			return nil, fmt.Errorf("protocol: read packet type: %w", err)
		}
		if typ[0] != keepaliveByte {
			break
		}
	}

	var ts [8]byte
	if _, err := io.ReadFull(r, ts[:]); err != nil {
		return nil, fmt.Errorf("protocol: read timestamp: %w", err)
	}
	pkt := &Packet{Type: typ[0], TimestampMicros: binary.LittleEndian.Uint64(ts[:])}

	switch typ[0] {
	case PacketTypeEnd:
		return pkt, nil
	case PacketTypeAudio:
		var fc [4]byte
		if _, err := io.ReadFull(r, fc[:]); err != nil {
			return nil, fmt.Errorf("protocol: read frame count: %w", err)
		}
		frames := int(binary.LittleEndian.Uint32(fc[:]))

		wireFormat := f
		wireFormat.Interleaved = true
		buf, err := audio.NewBuffer(wireFormat, frames)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPacket, err)
		}
		if _, err := io.ReadFull(r, buf.Data); err != nil {
			return nil, fmt.Errorf("protocol: read payload: %w", err)
		}
		pkt.Buffer = buf
		return pkt, nil
	default:
		return nil, fmt.Errorf("%w: unknown type 0x%02x", ErrBadPacket, typ[0])
	}
}

// DecodePacket parses a complete packet from a byte slice.
func DecodePacket(b []byte, f audio.Format) (*Packet, error) {
	pkt, err := ReadPacket(bytes.NewReader(b), f)
	if err != nil {
		return nil, err
	}
	return pkt, nil
}

// interleavedPayload returns the buffer's sample bytes in interleaved order.
func interleavedPayload(buf *audio.Buffer) []byte {
	if buf.Format.Interleaved {
		return buf.Data
	}

	bps := buf.Format.BytesPerSample()
	channels := buf.Format.Channels
	out := make([]byte, len(buf.Data))
	for f := 0; f < buf.Frames; f++ {
		for c := 0; c < channels; c++ {
			src := (c*buf.Frames + f) * bps
			dst := (f*channels + c) * bps
			copy(out[dst:dst+bps], buf.Data[src:src+bps])
		}
	}
	return out
}

func timestampMicros(t, epochStart time.Time) uint64 {
	d := t.Sub(epochStart)
	if d < 0 {
		return 0
	}
	return uint64(d.Microseconds())
}
