// ABOUTME: Package documentation for audio types
// ABOUTME: Core format, buffer and negotiation primitives

// Package audio defines the PCM sample formats and buffers shared by every
// stage of the capture pipeline, plus the format negotiation rules used to
// pick a session format between a capture source and its outputs.
package audio
