// ABOUTME: Format negotiation between capture sources and output destinations
// ABOUTME: Picks a session format by priority and checks conversion feasibility
package audio

import (
	"errors"
	"fmt"
)

// ErrNegotiationFailed is returned when no conversion path exists between
// two formats.
var ErrNegotiationFailed = errors.New("audio: format negotiation failed")

// Priority selects the negotiation strategy.
type Priority int

const (
	// PriorityBalanced takes the destination's rate, depth and layout with
	// the smaller channel count.
	PriorityBalanced Priority = iota
	// PriorityQuality takes the maximum of each quality dimension.
	PriorityQuality
	// PriorityCompatibility takes the destination format verbatim.
	PriorityCompatibility
	// PriorityPerformance takes the source format verbatim, minimizing
	// conversion work.
	PriorityPerformance
)

func (p Priority) String() string {
	switch p {
	case PriorityQuality:
		return "quality"
	case PriorityCompatibility:
		return "compatibility"
	case PriorityPerformance:
		return "performance"
	default:
		return "balanced"
	}
}

// Preferences configures format negotiation.
type Preferences struct {
	Priority Priority
}

// DefaultPreferences returns balanced negotiation preferences.
func DefaultPreferences() Preferences {
	return Preferences{Priority: PriorityBalanced}
}

// Negotiate picks a working format for a source/destination pair. Equal
// formats negotiate to themselves.
func Negotiate(source, destination Format, prefs Preferences) Format {
	if source.Equal(destination) {
		return source
	}

	switch prefs.Priority {
	case PriorityQuality:
		return Format{
			SampleRate:  maxFloat(source.SampleRate, destination.SampleRate),
			Channels:    maxInt(source.Channels, destination.Channels),
			BitDepth:    maxInt(source.BitDepth, destination.BitDepth),
			Interleaved: destination.Interleaved,
			Float:       source.Float || destination.Float,
		}
	case PriorityCompatibility:
		return destination
	case PriorityPerformance:
		return source
	default: // balanced
		return Format{
			SampleRate:  destination.SampleRate,
			Channels:    minInt(source.Channels, destination.Channels),
			BitDepth:    destination.BitDepth,
			Interleaved: destination.Interleaved,
			Float:       destination.Float,
		}
	}
}

// CanConvert reports whether a buffer in source format can be converted to
// the destination format. Channel mapping is limited to mono→stereo upmix
// and N→stereo downmix; every other channel change is unsupported.
func CanConvert(source, destination Format) bool {
	if source.Channels == destination.Channels {
		return true
	}
	if source.Channels == 1 && destination.Channels == 2 {
		return true
	}
	if source.Channels > 2 && destination.Channels == 2 {
		return true
	}
	return false
}

// CheckConvertible is CanConvert with a descriptive error.
func CheckConvertible(source, destination Format) error {
	if !CanConvert(source, destination) {
		return fmt.Errorf("%w: no channel map from %dch to %dch",
			ErrNegotiationFailed, source.Channels, destination.Channels)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
