// ABOUTME: Fan-out of captured buffers to registered sinks
// ABOUTME: Per-sink delivery lanes with failure isolation
package capture

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// Multiplexer fans captured buffers out to every registered sink. Each sink
// gets its own delivery lane: a failing or slow sink never blocks or aborts
// the others. Buffers are delivered to each sink in arrival order.
type Multiplexer struct {
	mu      sync.Mutex
	sinks   []Sink // registration order, preserved for Finish
	lanes   map[uuid.UUID]*sinkLane
	paused  bool
	onError func(sink Sink, err error)
}

// sinkLane serializes deliveries to one sink so per-sink order holds even
// though sinks run independently of each other.
type sinkLane struct {
	sink Sink
	ch   chan *audio.Buffer
	done chan struct{}
}

const laneDepth = 64

// NewMultiplexer creates an empty multiplexer. The onError observer, if not
// nil, is called after a sink's HandleError whenever a delivery fails.
func NewMultiplexer(onError func(sink Sink, err error)) *Multiplexer {
	return &Multiplexer{
		lanes:   make(map[uuid.UUID]*sinkLane),
		onError: onError,
	}
}

// Add registers a sink. The sink must already be configured.
func (m *Multiplexer) Add(sink Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lanes[sink.ID()]; ok {
		return fmt.Errorf("sink %s already registered", sink.ID())
	}

	lane := &sinkLane{
		sink: sink,
		ch:   make(chan *audio.Buffer, laneDepth),
		done: make(chan struct{}),
	}
	m.sinks = append(m.sinks, sink)
	m.lanes[sink.ID()] = lane
	go m.runLane(lane)
	return nil
}

// Remove unregisters a sink and drains its lane. The sink itself is not
// finished; that stays the caller's responsibility.
func (m *Multiplexer) Remove(id uuid.UUID) (Sink, bool) {
	m.mu.Lock()
	lane, ok := m.lanes[id]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	delete(m.lanes, id)
	for i, s := range m.sinks {
		if s.ID() == id {
			m.sinks = append(m.sinks[:i], m.sinks[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	close(lane.ch)
	<-lane.done
	return lane.sink, true
}

// Sinks returns the registered sinks in registration order.
func (m *Multiplexer) Sinks() []Sink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sink, len(m.sinks))
	copy(out, m.sinks)
	return out
}

// SetPaused toggles delivery. While paused, dispatched buffers are dropped.
func (m *Multiplexer) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
}

// Dispatch hands a buffer to every sink lane. A full lane drops the buffer
// for that sink only.
func (m *Multiplexer) Dispatch(buf *audio.Buffer) {
	m.mu.Lock()
	if m.paused {
		m.mu.Unlock()
		return
	}
	lanes := make([]*sinkLane, 0, len(m.lanes))
	for _, lane := range m.lanes {
		lanes = append(lanes, lane)
	}
	m.mu.Unlock()

	for _, lane := range lanes {
		select {
		case lane.ch <- buf:
		default:
			log.Printf("multiplexer: sink %s lane full, dropping buffer", lane.sink.ID())
		}
	}
}

// Close shuts down every lane and returns the sinks in registration order,
// without finishing them.
func (m *Multiplexer) Close() []Sink {
	m.mu.Lock()
	sinks := m.sinks
	lanes := m.lanes
	m.sinks = nil
	m.lanes = make(map[uuid.UUID]*sinkLane)
	m.mu.Unlock()

	for _, lane := range lanes {
		close(lane.ch)
	}
	for _, lane := range lanes {
		<-lane.done
	}
	return sinks
}

func (m *Multiplexer) runLane(lane *sinkLane) {
	defer close(lane.done)
	for buf := range lane.ch {
		if err := lane.sink.Process(buf); err != nil {
			log.Printf("multiplexer: sink %s process failed: %v", lane.sink.ID(), err)
			lane.sink.HandleError(err)
			if m.onError != nil {
				m.onError(lane.sink, err)
			}
		}
	}
}
