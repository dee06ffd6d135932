// ABOUTME: Bounded thread-safe FIFO buffer queue
// ABOUTME: Drop-oldest overflow policy with monotonic statistics
package capture

import (
	"sync"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// DefaultQueueSize is the queue capacity used when none is given.
const DefaultQueueSize = 32

// QueueStats holds monotonic queue counters. Reading never mutates.
type QueueStats struct {
	Len           int
	PeakLen       int
	TotalEnqueued uint64
	TotalDequeued uint64
	Dropped       uint64
}

// DropRate returns dropped/enqueued, or 0 before the first enqueue.
func (s QueueStats) DropRate() float64 {
	if s.TotalEnqueued == 0 {
		return 0
	}
	return float64(s.Dropped) / float64(s.TotalEnqueued)
}

// Queue is a bounded FIFO of audio buffers. When full, Enqueue drops a
// buffer instead of growing, bounding memory under sustained overload. All
// methods are safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	capacity int
	items    []*audio.Buffer
	finished bool
	stream   chan *audio.Buffer
	stats    QueueStats
}

// NewQueue creates a queue with the given capacity (DefaultQueueSize if
// capacity is not positive).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Queue{capacity: capacity}
}

// Subscribe returns a channel carrying each retained buffer exactly once,
// closed by Finish. Buffers already queued are handed to the stream so the
// subscriber never misses them. Only one subscription is supported.
func (q *Queue) Subscribe() <-chan *audio.Buffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stream == nil {
		q.stream = make(chan *audio.Buffer, q.capacity)
		for _, buf := range q.items {
			q.stream <- buf
		}
	}
	return q.stream
}

// Enqueue appends a buffer. On overflow without a subscriber the FIFO head
// is dropped to make room; with a subscriber a full stream drops the new
// buffer instead, since mirrored buffers cannot be recalled. Either way the
// stream and the queue hold exactly the same buffers, so nothing is ever
// delivered twice. Enqueues after Finish are rejected silently.
func (q *Queue) Enqueue(buf *audio.Buffer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finished {
		return
	}

	q.stats.TotalEnqueued++
	if q.stream != nil {
		select {
		case q.stream <- buf:
		default:
			q.stats.Dropped++
			return
		}
	} else if len(q.items) >= q.capacity {
		q.stats.Dropped++
		q.items = q.items[1:]
	}

	q.items = append(q.items, buf)
	if len(q.items) > q.stats.PeakLen {
		q.stats.PeakLen = len(q.items)
	}
}

// Dequeue removes and returns the oldest buffer.
func (q *Queue) Dequeue() (*audio.Buffer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	buf := q.items[0]
	q.items = q.items[1:]
	q.stats.TotalDequeued++
	return buf, true
}

// Peek returns the oldest buffer without removing it.
func (q *Queue) Peek() (*audio.Buffer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Clear removes all queued buffers. Cleared items do not count as drops;
// the Dropped counter only tracks overflow.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue is empty.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// IsFull reports whether the queue is at capacity.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) >= q.capacity
}

// Finish flips the queue to its terminal state and closes the stream.
// Every retained buffer is already mirrored on the stream, so the
// subscriber drains the remainder in FIFO order with no re-flush. Further
// enqueues are rejected silently. Finish is idempotent.
func (q *Queue) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finished {
		return
	}
	q.finished = true

	if q.stream != nil {
		close(q.stream)
	}
	q.items = nil
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Len = len(q.items)
	return s
}
