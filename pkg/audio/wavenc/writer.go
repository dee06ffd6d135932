// ABOUTME: WAV file writer
// ABOUTME: Streams int16 interleaved buffers into a RIFF/WAV file
package wavenc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// FileWriter writes 16-bit interleaved PCM buffers to a WAV file.
type FileWriter struct {
	path    string
	format  audio.Format
	file    *os.File
	encoder *wav.Encoder

	buffersWritten int64
	framesWritten  int64
}

// NewFileWriter opens path for writing WAV data in the given format. The
// format must be 16-bit interleaved integer PCM; a .wav extension is added
// when missing and parent directories are created.
func NewFileWriter(path string, format audio.Format) (*FileWriter, error) {
	if format.Float || format.BitDepth != 16 || !format.Interleaved {
		return nil, fmt.Errorf("wavenc: writer requires 16-bit interleaved int PCM, got %s", format)
	}
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		path += ".wav"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("wavenc: create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavenc: open %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, int(format.SampleRate), format.BitDepth, format.Channels, 1)
	return &FileWriter{path: path, format: format, file: f, encoder: enc}, nil
}

// Path returns the resolved output path.
func (w *FileWriter) Path() string {
	return w.path
}

// Write appends one buffer. Buffers must already match the writer's format;
// see ToInt16Interleaved.
func (w *FileWriter) Write(buf *audio.Buffer) error {
	if !buf.Format.Equal(w.format) {
		return fmt.Errorf("wavenc: buffer format %s does not match writer format %s", buf.Format, w.format)
	}

	n := buf.Frames * w.format.Channels
	data := make([]int, n)
	for i := 0; i < n; i++ {
		data[i] = int(int16(uint16(buf.Data[i*2]) | uint16(buf.Data[i*2+1])<<8))
	}

	intBuf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: w.format.Channels,
			SampleRate:  int(w.format.SampleRate),
		},
		Data:           data,
		SourceBitDepth: w.format.BitDepth,
	}
	if err := w.encoder.Write(intBuf); err != nil {
		return fmt.Errorf("wavenc: write: %w", err)
	}

	w.buffersWritten++
	w.framesWritten += int64(buf.Frames)
	return nil
}

// Stats returns the number of buffers and frames written so far.
func (w *FileWriter) Stats() (buffers, frames int64) {
	return w.buffersWritten, w.framesWritten
}

// Close finalizes the WAV header and closes the file.
func (w *FileWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("wavenc: finalize: %w", err)
	}
	return w.file.Close()
}
