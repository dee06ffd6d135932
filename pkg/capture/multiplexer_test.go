// ABOUTME: Tests for the sink multiplexer
// ABOUTME: Covers fan-out ordering, failure isolation and pausing
package capture

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// fakeSink records processed buffers and can be made to always fail.
type fakeSink struct {
	id   uuid.UUID
	fail bool

	mu           sync.Mutex
	configured   bool
	finished     int
	processed    []*audio.Buffer
	handleErrors int
}

func newFakeSink(fail bool) *fakeSink {
	return &fakeSink{id: uuid.New(), fail: fail}
}

func (s *fakeSink) ID() uuid.UUID { return s.id }

func (s *fakeSink) Configure(format audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configured {
		return errors.New("already configured")
	}
	s.configured = true
	return nil
}

func (s *fakeSink) Process(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink failure")
	}
	s.processed = append(s.processed, buf)
	return nil
}

func (s *fakeSink) HandleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handleErrors++
}

func (s *fakeSink) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
	return nil
}

func (s *fakeSink) snapshot() (processed []*audio.Buffer, handleErrors, finished int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*audio.Buffer{}, s.processed...), s.handleErrors, s.finished
}

func TestMultiplexerFanOutIsolatesFailures(t *testing.T) {
	var observed int
	var observedMu sync.Mutex
	mux := NewMultiplexer(func(sink Sink, err error) {
		observedMu.Lock()
		observed++
		observedMu.Unlock()
	})

	a := newFakeSink(false)
	b := newFakeSink(true)
	c := newFakeSink(false)
	for _, s := range []Sink{a, b, c} {
		if err := mux.Add(s); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	buffers := make([]*audio.Buffer, 5)
	for i := range buffers {
		buffers[i] = makeTestBuffer(t, i+1)
		mux.Dispatch(buffers[i])
	}
	mux.Close()

	for name, sink := range map[string]*fakeSink{"a": a, "c": c} {
		processed, handleErrors, _ := sink.snapshot()
		if len(processed) != 5 {
			t.Fatalf("sink %s processed %d buffers, want 5", name, len(processed))
		}
		for i, buf := range buffers {
			if processed[i] != buf {
				t.Errorf("sink %s: buffer %d out of order", name, i)
			}
		}
		if handleErrors != 0 {
			t.Errorf("sink %s saw %d errors, want 0", name, handleErrors)
		}
	}

	_, handleErrors, _ := b.snapshot()
	if handleErrors != 5 {
		t.Errorf("failing sink HandleError count = %d, want 5", handleErrors)
	}
	observedMu.Lock()
	defer observedMu.Unlock()
	if observed != 5 {
		t.Errorf("error observer count = %d, want 5", observed)
	}
}

func TestMultiplexerPausedDropsBuffers(t *testing.T) {
	mux := NewMultiplexer(nil)
	sink := newFakeSink(false)
	if err := mux.Add(sink); err != nil {
		t.Fatalf("Add: %v", err)
	}

	mux.SetPaused(true)
	mux.Dispatch(makeTestBuffer(t, 1))
	mux.SetPaused(false)
	kept := makeTestBuffer(t, 2)
	mux.Dispatch(kept)
	mux.Close()

	processed, _, _ := sink.snapshot()
	if len(processed) != 1 || processed[0] != kept {
		t.Fatalf("processed %d buffers, want only the unpaused one", len(processed))
	}
}

func TestMultiplexerRemove(t *testing.T) {
	mux := NewMultiplexer(nil)
	a := newFakeSink(false)
	b := newFakeSink(false)
	mux.Add(a)
	mux.Add(b)

	removed, ok := mux.Remove(a.ID())
	if !ok || removed.ID() != a.ID() {
		t.Fatal("Remove returned wrong sink")
	}
	if _, ok := mux.Remove(a.ID()); ok {
		t.Fatal("second Remove should fail")
	}

	mux.Dispatch(makeTestBuffer(t, 1))
	mux.Close()

	if processed, _, _ := a.snapshot(); len(processed) != 0 {
		t.Error("removed sink still received buffers")
	}
	if processed, _, _ := b.snapshot(); len(processed) != 1 {
		t.Error("remaining sink missed the buffer")
	}
}

func TestMultiplexerDuplicateAdd(t *testing.T) {
	mux := NewMultiplexer(nil)
	sink := newFakeSink(false)
	if err := mux.Add(sink); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mux.Add(sink); err == nil {
		t.Fatal("expected duplicate Add to fail")
	}
	mux.Close()
}

func TestMultiplexerCloseReturnsRegistrationOrder(t *testing.T) {
	mux := NewMultiplexer(nil)
	sinks := []*fakeSink{newFakeSink(false), newFakeSink(false), newFakeSink(false)}
	for _, s := range sinks {
		mux.Add(s)
	}

	got := mux.Close()
	if len(got) != 3 {
		t.Fatalf("Close returned %d sinks, want 3", len(got))
	}
	for i, s := range sinks {
		if got[i].ID() != s.id {
			t.Errorf("position %d: registration order not preserved", i)
		}
	}
}
