// ABOUTME: Control API message type definitions
// ABOUTME: Tagged-union command and response envelopes
package control

import "encoding/json"

// Command is the top-level wrapper for all control commands. Type selects
// which payload field applies.
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command types accepted by the control server.
const (
	CmdStart        = "session/start"
	CmdStop         = "session/stop"
	CmdPause        = "session/pause"
	CmdResume       = "session/resume"
	CmdStats        = "session/stats"
	CmdAddOutput    = "output/add"
	CmdRemoveOutput = "output/remove"
	CmdListOutputs  = "output/list"
)

// AddOutputPayload configures a new sink on the session.
type AddOutputPayload struct {
	// Kind is "file", "network" or "playback".
	Kind string `json:"kind"`
	// Path is the WAV path for file sinks.
	Path string `json:"path,omitempty"`
	// Addr is the listen address for network sinks.
	Addr string `json:"addr,omitempty"`
}

// RemoveOutputPayload names the sink to remove.
type RemoveOutputPayload struct {
	ID string `json:"id"`
}

// Response is the top-level wrapper for all control responses.
type Response struct {
	Type    string      `json:"type"`
	OK      bool        `json:"ok"`
	Error   string      `json:"error,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// StatsPayload reports session statistics.
type StatsPayload struct {
	State           string  `json:"state"`
	Format          string  `json:"format"`
	SinkCount       int     `json:"sink_count"`
	BuffersCaptured uint64  `json:"buffers_captured"`
	FramesCaptured  uint64  `json:"frames_captured"`
	QueueLen        int     `json:"queue_len"`
	QueuePeak       int     `json:"queue_peak"`
	QueueDropped    uint64  `json:"queue_dropped"`
	QueueDropRate   float64 `json:"queue_drop_rate"`
}

// OutputInfo describes one registered sink.
type OutputInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// StatePayload is pushed to subscribed clients on session state changes.
type StatePayload struct {
	Old string `json:"old"`
	New string `json:"new"`
}
