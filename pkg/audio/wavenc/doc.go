// ABOUTME: Package documentation for wavenc
// ABOUTME: Deterministic WAV sample conversion and file writing

// Package wavenc implements the deterministic two-stage conversion used for
// WAV output (interleave, then float→int16 clamp-and-truncate) and a file
// writer producing standard RIFF/WAV files.
package wavenc
