// ABOUTME: Priority-ordered buffer queue variant
// ABOUTME: Dequeues by importance with lowest-priority eviction on overflow
package capture

import (
	"sync"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// BufferPriority orders buffers in a PriorityQueue.
type BufferPriority int

const (
	PriorityLow BufferPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

type priorityItem struct {
	buf      *audio.Buffer
	priority BufferPriority
}

// PriorityQueue is a priority-ordered pass-through with a bounded lookback:
// with a live subscriber, Enqueue forwards the current highest-priority
// buffer to the stream immediately; buffers are held only while the stream
// is full or nobody has subscribed. Held items stay in descending priority
// order, FIFO within a priority level, and on overflow the earliest-inserted
// item of the lowest priority is evicted rather than the oldest overall.
//
// The plain Queue is the kit's default; this variant serves consumers that
// tag buffers with importance.
type PriorityQueue struct {
	mu       sync.Mutex
	capacity int
	items    []priorityItem // descending priority, FIFO within a priority
	finished bool
	stream   chan *audio.Buffer
	stats    QueueStats
}

// NewPriorityQueue creates a priority queue with the given capacity
// (DefaultQueueSize if not positive).
func NewPriorityQueue(capacity int) *PriorityQueue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &PriorityQueue{capacity: capacity}
}

// Subscribe returns a channel mirroring enqueued buffers, closed by Finish.
// Only one subscription is supported.
func (q *PriorityQueue) Subscribe() <-chan *audio.Buffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stream == nil {
		q.stream = make(chan *audio.Buffer, q.capacity)
	}
	return q.stream
}

// Enqueue inserts a buffer in priority order, then forwards the current
// highest-priority buffer to the subscribed stream if it has room. On
// overflow the lowest-priority held item is evicted first. Enqueues after
// Finish are rejected silently.
func (q *PriorityQueue) Enqueue(buf *audio.Buffer, priority BufferPriority) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finished {
		return
	}

	q.stats.TotalEnqueued++
	if len(q.items) >= q.capacity {
		q.stats.Dropped++
		q.evictLowest()
	}
	q.insert(priorityItem{buf: buf, priority: priority})
	if len(q.items) > q.stats.PeakLen {
		q.stats.PeakLen = len(q.items)
	}

	if q.stream != nil {
		select {
		case q.stream <- q.items[0].buf:
			q.items = q.items[1:]
			q.stats.TotalDequeued++
		default:
			// Stream full, the item stays in the lookback.
		}
	}
}

// Dequeue removes and returns the highest-priority buffer.
func (q *PriorityQueue) Dequeue() (*audio.Buffer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	q.stats.TotalDequeued++
	return it.buf, true
}

// Peek returns the highest-priority buffer without removing it.
func (q *PriorityQueue) Peek() (*audio.Buffer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0].buf, true
}

// Len returns the current queue depth.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Finish flushes remaining buffers to the stream in priority order, closes
// it and rejects further enqueues. Finish is idempotent.
func (q *PriorityQueue) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finished {
		return
	}
	q.finished = true

	if q.stream != nil {
		for _, it := range q.items {
			select {
			case q.stream <- it.buf:
			default:
			}
		}
		close(q.stream)
	}
	q.items = nil
}

// Stats returns a snapshot of the queue counters.
func (q *PriorityQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Len = len(q.items)
	return s
}

// insert places the item after all items of equal or higher priority,
// keeping FIFO order within a priority level.
func (q *PriorityQueue) insert(it priorityItem) {
	lo, hi := 0, len(q.items)
	for lo < hi {
		mid := (lo + hi) / 2
		if q.items[mid].priority >= it.priority {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	q.items = append(q.items, priorityItem{})
	copy(q.items[lo+1:], q.items[lo:])
	q.items[lo] = it
}

// evictLowest removes the earliest-inserted item of the lowest priority.
func (q *PriorityQueue) evictLowest() {
	if len(q.items) == 0 {
		return
	}
	lowest := 0
	for i, it := range q.items {
		if it.priority < q.items[lowest].priority {
			lowest = i
		}
	}
	q.items = append(q.items[:lowest], q.items[lowest+1:]...)
}
