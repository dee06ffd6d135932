// ABOUTME: Package documentation for the capture pipeline
// ABOUTME: Describes sessions, queues, the multiplexer and sinks
// Package capture drives audio capture sessions.
//
// A Session owns a Source, negotiates the stream format, pumps captured
// buffers through a bounded Queue and fans them out to registered Sinks
// through the Multiplexer. Sinks record to WAV files, stream over TCP,
// play on the local device, hand buffers to callbacks or retain recent
// bytes in a ring.
//
// Sessions follow a strict lifecycle (idle, starting, active, paused,
// stopping, stopped, error); operations invalid in the current state fail
// with ErrInvalidState and leave the session unchanged.
package capture
