// ABOUTME: Tests for the bounded FIFO buffer queue
// ABOUTME: Covers overflow accounting, stats and the finish flush
package capture

import (
	"testing"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

func makeTestBuffer(t *testing.T, frames int) *audio.Buffer {
	t.Helper()
	buf, err := audio.NewBuffer(audio.StandardWAV(), frames)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return buf
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(8)

	first := makeTestBuffer(t, 1)
	second := makeTestBuffer(t, 2)
	q.Enqueue(first)
	q.Enqueue(second)

	got, ok := q.Dequeue()
	if !ok || got != first {
		t.Fatal("expected first enqueued buffer")
	}
	got, ok = q.Dequeue()
	if !ok || got != second {
		t.Fatal("expected second enqueued buffer")
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	const capacity = 4
	q := NewQueue(capacity)

	buffers := make([]*audio.Buffer, 10)
	for i := range buffers {
		buffers[i] = makeTestBuffer(t, i+1)
		q.Enqueue(buffers[i])
	}

	if q.Len() != capacity {
		t.Fatalf("Len() = %d, want %d", q.Len(), capacity)
	}

	stats := q.Stats()
	if stats.TotalEnqueued != 10 {
		t.Errorf("TotalEnqueued = %d, want 10", stats.TotalEnqueued)
	}
	if stats.Dropped != 6 {
		t.Errorf("Dropped = %d, want 6", stats.Dropped)
	}

	// The oldest survivors are the last capacity buffers, still in order.
	for i := 0; i < capacity; i++ {
		got, ok := q.Dequeue()
		if !ok || got != buffers[10-capacity+i] {
			t.Fatalf("position %d: wrong survivor", i)
		}
	}
}

func TestQueueStats(t *testing.T) {
	q := NewQueue(4)

	if rate := q.Stats().DropRate(); rate != 0 {
		t.Errorf("DropRate before enqueues = %v, want 0", rate)
	}

	for i := 0; i < 8; i++ {
		q.Enqueue(makeTestBuffer(t, 1))
	}
	stats := q.Stats()
	if stats.PeakLen != 4 {
		t.Errorf("PeakLen = %d, want 4", stats.PeakLen)
	}
	if got := stats.DropRate(); got != 0.5 {
		t.Errorf("DropRate = %v, want 0.5", got)
	}

	// Reading stats must not mutate them.
	if again := q.Stats(); again != stats {
		t.Errorf("stats changed between reads: %+v vs %+v", again, stats)
	}
}

func TestQueueClearDoesNotCountDrops(t *testing.T) {
	q := NewQueue(4)
	q.Enqueue(makeTestBuffer(t, 1))
	q.Enqueue(makeTestBuffer(t, 1))
	q.Clear()

	if q.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", q.Len())
	}
	if dropped := q.Stats().Dropped; dropped != 0 {
		t.Errorf("Dropped after Clear = %d, want 0", dropped)
	}
}

func TestQueueFullEmpty(t *testing.T) {
	q := NewQueue(2)
	if !q.IsEmpty() || q.IsFull() {
		t.Fatal("new queue should be empty and not full")
	}
	q.Enqueue(makeTestBuffer(t, 1))
	q.Enqueue(makeTestBuffer(t, 1))
	if q.IsEmpty() || !q.IsFull() {
		t.Fatal("queue at capacity should be full")
	}
}

func TestQueueFinishFlushesStream(t *testing.T) {
	q := NewQueue(4)
	stream := q.Subscribe()

	first := makeTestBuffer(t, 1)
	second := makeTestBuffer(t, 2)
	q.Enqueue(first)
	q.Enqueue(second)

	q.Finish()
	q.Finish() // idempotent

	var got []*audio.Buffer
	for buf := range stream {
		got = append(got, buf)
	}
	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Fatalf("drained %d buffers, want exactly first and second in order", len(got))
	}

	q.Enqueue(makeTestBuffer(t, 1))
	if got := q.Stats().TotalEnqueued; got != 2 {
		t.Errorf("enqueue after Finish counted: TotalEnqueued = %d, want 2", got)
	}
}

func TestQueueDrainDeliversEachBufferOnce(t *testing.T) {
	// Overflow while a consumer lags, then Finish mid-stream: every buffer
	// must come off the stream at most once, never duplicated by the drain.
	q := NewQueue(3)
	stream := q.Subscribe()

	buffers := make([]*audio.Buffer, 4)
	for i := range buffers {
		buffers[i] = makeTestBuffer(t, i+1)
		q.Enqueue(buffers[i])
	}
	if dropped := q.Stats().Dropped; dropped != 1 {
		t.Fatalf("Dropped = %d, want 1 with the stream full", dropped)
	}

	// Consume one the way the session pump does.
	delivered := map[*audio.Buffer]int{}
	delivered[<-stream]++
	q.Dequeue()

	q.Finish()
	for buf := range stream {
		delivered[buf]++
		q.Dequeue()
	}

	total := 0
	for buf, n := range delivered {
		if n != 1 {
			t.Errorf("buffer with %d frames delivered %d times", buf.Frames, n)
		}
		total += n
	}
	if total != 3 {
		t.Errorf("delivered %d buffers, want 3", total)
	}
}

func TestQueueSubscribeSeesEarlierEnqueues(t *testing.T) {
	q := NewQueue(4)
	first := makeTestBuffer(t, 1)
	q.Enqueue(first)

	stream := q.Subscribe()
	q.Finish()

	if got := <-stream; got != first {
		t.Fatal("buffer enqueued before Subscribe missing from the stream")
	}
	if _, ok := <-stream; ok {
		t.Fatal("expected closed stream")
	}
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < DefaultQueueSize+5; i++ {
		q.Enqueue(makeTestBuffer(t, 1))
	}
	if q.Len() != DefaultQueueSize {
		t.Errorf("Len() = %d, want %d", q.Len(), DefaultQueueSize)
	}
}
