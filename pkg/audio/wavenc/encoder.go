// ABOUTME: Two-stage WAV sample conversion
// ABOUTME: Interleaves planar buffers then converts float samples to int16
package wavenc

import (
	"errors"
	"fmt"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// ErrUnsupportedSource is returned for buffers the encoder cannot handle.
var ErrUnsupportedSource = errors.New("wavenc: unsupported source format")

// ToInt16Interleaved converts a buffer to 16-bit interleaved integer PCM at
// the same sample rate and channel count, in two mandatory stages:
//
//  1. interleave planar data: out[f*channels+c] = in[c][f]
//  2. float→int16: clamp to [-1, 1], scale by 32767, truncate
//
// Combined planar-float→interleaved-int conversion is unreliable in
// standard converters, so the stage order is fixed. Stage 1 is skipped for
// interleaved sources; an exact-match source is returned verbatim.
func ToInt16Interleaved(buf *audio.Buffer) (*audio.Buffer, error) {
	src := buf.Format
	target := audio.Format{
		SampleRate:  src.SampleRate,
		Channels:    src.Channels,
		BitDepth:    16,
		Interleaved: true,
	}
	if src.Equal(target) {
		return buf, nil
	}

	// Stage 1: interleave. Operating in the float domain keeps stage 2's
	// clamp-then-truncate rule the single quantization point.
	channels := src.Channels
	interleaved := make([]float64, buf.Frames*channels)
	for f := 0; f < buf.Frames; f++ {
		for c := 0; c < channels; c++ {
			interleaved[f*channels+c] = buf.Sample(c, f)
		}
	}

	// Stage 2: float→int16.
	out, err := audio.NewBuffer(target, buf.Frames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	out.CapturedAt = buf.CapturedAt
	for i, v := range interleaved {
		s := audio.FloatToInt16(v)
		out.Data[i*2] = byte(s)
		out.Data[i*2+1] = byte(uint16(s) >> 8)
	}
	return out, nil
}
