// ABOUTME: Linear-interpolation sample rate converter
// ABOUTME: Converts interleaved float frames between sample rates
package resample

import "math"

// Resampler converts between sample rates using linear interpolation.
// Each Resample call treats its input as a complete block; no position is
// carried between calls.
type Resampler struct {
	inputRate  float64
	outputRate float64
	channels   int
	ratio      float64
}

// New creates a resampler. Rates must be positive and channels at least 1.
func New(inputRate, outputRate float64, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      inputRate / outputRate,
	}
}

// OutputFrames returns the frame count produced for a given input length:
// round(inputFrames * outputRate / inputRate).
func (r *Resampler) OutputFrames(inputFrames int) int {
	return int(math.Round(float64(inputFrames) * r.outputRate / r.inputRate))
}

// Resample converts interleaved input samples to the output rate. The
// result is allocated with a two-frame safety margin and trimmed to the
// frames actually produced.
func (r *Resampler) Resample(input []float64) []float64 {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return nil
	}

	outputFrames := r.OutputFrames(inputFrames)
	output := make([]float64, 0, (outputFrames+2)*r.channels)

	for outIdx := 0; outIdx < outputFrames; outIdx++ {
		inputPos := float64(outIdx) * r.ratio
		inputIdx := int(inputPos)
		frac := inputPos - float64(inputIdx)

		// Hold the last frame when interpolation runs past the input.
		next := inputIdx + 1
		if next >= inputFrames {
			next = inputFrames - 1
		}
		if inputIdx >= inputFrames {
			inputIdx = inputFrames - 1
		}

		for ch := 0; ch < r.channels; ch++ {
			s1 := input[inputIdx*r.channels+ch]
			s2 := input[next*r.channels+ch]
			output = append(output, s1*(1.0-frac)+s2*frac)
		}
	}

	return output
}
