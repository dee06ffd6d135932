// ABOUTME: Package documentation for resample
// ABOUTME: Sample rate conversion via linear interpolation

// Package resample converts audio between sample rates using linear
// interpolation over interleaved float frames.
package resample
