// ABOUTME: Package documentation for convert
// ABOUTME: Format conversion between arbitrary PCM buffer formats

// Package convert transforms audio buffers between formats: sample rate,
// channel mapping, bit depth, float/int encoding and interleaving.
package convert
