// ABOUTME: Buffer format conversion engine
// ABOUTME: Resamples, remaps channels and re-encodes buffers between formats
package convert

import (
	"errors"
	"fmt"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
	"github.com/CaptureKit/capturekit-go/pkg/audio/resample"
)

// ErrConversionFailed is returned when a buffer cannot be converted to the
// requested format, including via the standard intermediate fallback.
var ErrConversionFailed = errors.New("convert: format conversion failed")

// Convert produces a new buffer in the target format. The input buffer is
// never mutated; when the formats already match it is returned as-is.
//
// Mono→stereo conversion resamples in mono first and then duplicates the
// channel, because combined resample+upmix is numerically unreliable.
// Downmix takes the leading min(source, target) channels. If no direct path
// exists, conversion is retried through a standard stereo float intermediate.
func Convert(buf *audio.Buffer, target audio.Format) (*audio.Buffer, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid target: %v", ErrConversionFailed, err)
	}
	if buf.Format.Equal(target) {
		return buf, nil
	}

	out, err := convertDirect(buf, target)
	if err == nil {
		return out, nil
	}

	// Fallback: negotiate a standard intermediate and convert in two hops.
	intermediate := audio.Format{
		SampleRate:  target.SampleRate,
		Channels:    2,
		BitDepth:    32,
		Interleaved: true,
		Float:       true,
	}
	if audio.CanConvert(buf.Format, intermediate) && audio.CanConvert(intermediate, target) {
		mid, midErr := convertDirect(buf, intermediate)
		if midErr == nil {
			if out, outErr := convertDirect(mid, target); outErr == nil {
				return out, nil
			}
		}
	}

	return nil, err
}

func convertDirect(buf *audio.Buffer, target audio.Format) (*audio.Buffer, error) {
	src := buf.Format
	if err := audio.CheckConvertible(src, target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	if src.Channels == 1 && target.Channels == 2 {
		return upmixMonoToStereo(buf, target)
	}

	// Not upmixing: work at min(source, target) channels, which equals the
	// target channel count whenever CanConvert holds.
	channels := src.Channels
	if target.Channels < channels {
		channels = target.Channels
	}

	samples := make([]float64, buf.Frames*channels)
	for f := 0; f < buf.Frames; f++ {
		for c := 0; c < channels; c++ {
			samples[f*channels+c] = buf.Sample(c, f)
		}
	}

	frames := buf.Frames
	if src.SampleRate != target.SampleRate {
		r := resample.New(src.SampleRate, target.SampleRate, channels)
		samples = r.Resample(samples)
		frames = len(samples) / channels
	}

	out, err := audio.NewBuffer(target, frames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	out.CapturedAt = buf.CapturedAt
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			out.SetSample(c, f, samples[f*channels+c])
		}
	}
	return out, nil
}

// upmixMonoToStereo resamples the mono signal first, then duplicates it
// into both output channels sample-for-sample.
func upmixMonoToStereo(buf *audio.Buffer, target audio.Format) (*audio.Buffer, error) {
	mono := buf.Samples(0)

	frames := buf.Frames
	if buf.Format.SampleRate != target.SampleRate {
		r := resample.New(buf.Format.SampleRate, target.SampleRate, 1)
		mono = r.Resample(mono)
		frames = len(mono)
	}

	out, err := audio.NewBuffer(target, frames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	out.CapturedAt = buf.CapturedAt
	for f := 0; f < frames; f++ {
		out.SetSample(0, f, mono[f])
		out.SetSample(1, f, mono[f])
	}
	return out, nil
}
