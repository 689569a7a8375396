// internal/dom/signals.go
package dom

import "sync"

// SignalQueue collects slots whose assignment changed, in FIFO order,
// deduplicated by slot identity while queued. The queue does no scheduling
// itself; the embedding runtime drains it at microtask-like checkpoints and
// dispatches slotchange events for the drained slots.
type SignalQueue struct {
	mu     sync.Mutex
	items  []*Node
	queued map[*Node]struct{}
}

// NewSignalQueue creates an empty queue.
func NewSignalQueue() *SignalQueue {
	return &SignalQueue{queued: make(map[*Node]struct{})}
}

// Enqueue adds slot to the queue unless it is already pending. Nil slots
// are ignored.
func (q *SignalQueue) Enqueue(slot *Node) {
	if slot == nil {
		return
	}
	q.mu.Lock()
	if _, ok := q.queued[slot]; !ok {
		q.queued[slot] = struct{}{}
		q.items = append(q.items, slot)
	}
	q.mu.Unlock()
}

// Drain returns the pending slots in insertion order and empties the queue.
// Slots drained once may be enqueued again by later assignment runs.
func (q *SignalQueue) Drain() []*Node {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.queued = make(map[*Node]struct{})
	q.mu.Unlock()
	return out
}

// Len returns the number of pending slots.
func (q *SignalQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
