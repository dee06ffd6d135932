// ABOUTME: Tests for the priority queue variant
// ABOUTME: Covers priority ordering, FIFO ties and lowest-priority eviction
package capture

import (
	"testing"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

func TestPriorityQueueDequeueOrder(t *testing.T) {
	q := NewPriorityQueue(8)

	low := makeTestBuffer(t, 1)
	critical := makeTestBuffer(t, 2)
	normal := makeTestBuffer(t, 3)
	high := makeTestBuffer(t, 4)

	q.Enqueue(low, PriorityLow)
	q.Enqueue(critical, PriorityCritical)
	q.Enqueue(normal, PriorityNormal)
	q.Enqueue(high, PriorityHigh)

	want := []*audio.Buffer{critical, high, normal, low}
	for i, w := range want {
		got, ok := q.Dequeue()
		if !ok || got != w {
			t.Fatalf("dequeue %d: wrong buffer", i)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestPriorityQueueFIFOWithinPriority(t *testing.T) {
	q := NewPriorityQueue(8)

	first := makeTestBuffer(t, 1)
	second := makeTestBuffer(t, 2)
	third := makeTestBuffer(t, 3)
	q.Enqueue(first, PriorityNormal)
	q.Enqueue(second, PriorityNormal)
	q.Enqueue(third, PriorityNormal)

	for i, w := range []*audio.Buffer{first, second, third} {
		got, ok := q.Dequeue()
		if !ok || got != w {
			t.Fatalf("dequeue %d: FIFO order within priority broken", i)
		}
	}
}

func TestPriorityQueueEvictsLowestOnOverflow(t *testing.T) {
	q := NewPriorityQueue(3)

	lowA := makeTestBuffer(t, 1)
	lowB := makeTestBuffer(t, 2)
	high := makeTestBuffer(t, 3)
	normal := makeTestBuffer(t, 4)

	q.Enqueue(lowA, PriorityLow)
	q.Enqueue(lowB, PriorityLow)
	q.Enqueue(high, PriorityHigh)

	// Overflow: the earliest-inserted low item (lowA) goes first.
	q.Enqueue(normal, PriorityNormal)

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	if dropped := q.Stats().Dropped; dropped != 1 {
		t.Errorf("Dropped = %d, want 1", dropped)
	}

	want := []*audio.Buffer{high, normal, lowB}
	for i, w := range want {
		got, ok := q.Dequeue()
		if !ok || got != w {
			t.Fatalf("dequeue %d: wrong survivor", i)
		}
	}
}

func TestPriorityQueuePeek(t *testing.T) {
	q := NewPriorityQueue(4)
	q.Enqueue(makeTestBuffer(t, 1), PriorityLow)
	high := makeTestBuffer(t, 2)
	q.Enqueue(high, PriorityHigh)

	got, ok := q.Peek()
	if !ok || got != high {
		t.Fatal("Peek should return the highest-priority buffer")
	}
	if q.Len() != 2 {
		t.Errorf("Peek must not remove: Len() = %d, want 2", q.Len())
	}
}

func TestPriorityQueuePassThrough(t *testing.T) {
	q := NewPriorityQueue(4)
	stream := q.Subscribe()

	low := makeTestBuffer(t, 1)
	high := makeTestBuffer(t, 2)
	q.Enqueue(low, PriorityLow)
	q.Enqueue(high, PriorityHigh)

	// With stream headroom nothing is held back.
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 with live subscriber", q.Len())
	}
	if got := <-stream; got != low {
		t.Error("first pass-through should be the low buffer, it was highest at enqueue time")
	}
	if got := <-stream; got != high {
		t.Error("second pass-through should be the high buffer")
	}
}

func TestPriorityQueueFinishFlushesLookback(t *testing.T) {
	q := NewPriorityQueue(4)
	stream := q.Subscribe()

	// Fill the stream so further enqueues land in the lookback.
	passed := make([]*audio.Buffer, 4)
	for i := range passed {
		passed[i] = makeTestBuffer(t, 1)
		q.Enqueue(passed[i], PriorityNormal)
	}

	heldLow := makeTestBuffer(t, 2)
	heldHigh := makeTestBuffer(t, 3)
	q.Enqueue(heldLow, PriorityLow)
	q.Enqueue(heldHigh, PriorityHigh)
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 held with full stream", q.Len())
	}

	for i, w := range passed {
		if got := <-stream; got != w {
			t.Fatalf("pass-through %d out of order", i)
		}
	}

	q.Finish()
	q.Finish() // idempotent

	if got, ok := <-stream; !ok || got != heldHigh {
		t.Error("expected high-priority buffer flushed first")
	}
	if got, ok := <-stream; !ok || got != heldLow {
		t.Error("expected low-priority buffer flushed second")
	}
	if _, ok := <-stream; ok {
		t.Error("expected closed stream after flush")
	}

	q.Enqueue(makeTestBuffer(t, 1), PriorityNormal)
	if got := q.Stats().TotalEnqueued; got != 6 {
		t.Errorf("enqueue after Finish counted: TotalEnqueued = %d, want 6", got)
	}
}
