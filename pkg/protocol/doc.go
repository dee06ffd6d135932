// ABOUTME: Package documentation for protocol
// ABOUTME: Little-endian binary framing for networked audio delivery

// Package protocol implements the binary framing used to stream audio
// buffers over a network connection: a fixed 18-byte format header sent
// once per connection, timestamped audio packets and an end-of-stream
// marker. Encoding and decoding are pure functions over byte slices.
package protocol
