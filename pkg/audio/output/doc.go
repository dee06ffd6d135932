// ABOUTME: Package documentation for audio output
// ABOUTME: Describes playback engine backends
// Package output plays audio buffers on the local output device.
//
// The package defines the Engine interface and an oto-based implementation.
// Buffers in any stream format are converted to 16-bit interleaved PCM
// before being handed to the device.
package output
