// ABOUTME: Oto-based playback engine
// ABOUTME: Streams PCM through a persistent player with software volume
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
	"github.com/CaptureKit/capturekit-go/pkg/audio/wavenc"
)

// Oto plays buffers through the oto library. A persistent player reads from
// a pipe so playback is gapless across Schedule calls.
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format
	volume     int
	muted      bool
	ready      bool
}

// NewOto creates an oto playback engine at full volume.
func NewOto() *Oto {
	return &Oto{volume: 100}
}

// Open initializes the output device. Oto only supports one context per
// process; a second Open with a different format keeps the first context
// and logs a warning.
func (o *Oto) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		if o.format.SampleRate == format.SampleRate && o.format.Channels == format.Channels {
			o.format = format
			return nil
		}
		log.Printf("Warning: oto cannot reinitialize for %s, continuing with %s", format, o.format)
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   int(format.SampleRate),
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.format = format
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("Audio output initialized: %s", format)
	return nil
}

// Schedule converts the buffer to 16-bit interleaved PCM, applies volume
// and writes it to the player pipe. Blocks until the device accepts it.
func (o *Oto) Schedule(buf *audio.Buffer) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}
	writer := o.pipeWriter
	volume := o.volume
	muted := o.muted
	o.mu.Unlock()

	converted, err := wavenc.ToInt16Interleaved(buf)
	if err != nil {
		return fmt.Errorf("playback conversion: %w", err)
	}

	data := converted.Data
	if muted || volume < 100 {
		data = applyVolume(data, volume, muted)
	}

	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Close releases playback resources.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	return nil
}

// SetVolume sets the playback volume (0-100).
func (o *Oto) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.mu.Lock()
	o.volume = volume
	o.mu.Unlock()
	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state.
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
	log.Printf("Muted: %v", muted)
}

// Volume returns the current volume.
func (o *Oto) Volume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state.
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// applyVolume scales 16-bit interleaved PCM bytes in a fresh slice.
func applyVolume(data []byte, volume int, muted bool) []byte {
	multiplier := getVolumeMultiplier(volume, muted)

	result := make([]byte, len(data))
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		scaled := int32(float64(sample) * multiplier)
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		binary.LittleEndian.PutUint16(result[i:], uint16(int16(scaled)))
	}
	return result
}

// getVolumeMultiplier calculates the volume multiplier.
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
