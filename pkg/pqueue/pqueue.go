// Package pqueue implements the bounded in-memory priority queue of pending
// tickets, ordered by urgency with arrival order breaking ties.
package pqueue

import (
	"container/heap"
	"sync"

	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// item is a heap entry. urgency is copied out of the ticket at enqueue so a
// priority update mutates the key in exactly one place.
type item struct {
	ticket  *models.Ticket
	urgency float64
	seq     uint64 // monotonically increasing arrival sequence
	index   int    // heap position, maintained by the heap interface
}

// Queue is a thread-safe priority queue addressable by ticket id.
//
// Ordering: higher urgency dequeues first; equal urgencies dequeue in arrival
// order. The arrival sequence, not wall-clock time, breaks ties so producer
// clock skew cannot reorder equal-urgency submissions.
type Queue struct {
	mu      sync.Mutex
	heap    itemHeap
	byID    map[string]*item
	nextSeq uint64
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{byID: make(map[string]*item)}
}

// Enqueue inserts the ticket keyed by its current urgency. A ticket id
// already present is replaced (same semantics as re-submitting).
func (q *Queue) Enqueue(t *models.Ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if old, ok := q.byID[t.ID]; ok {
		heap.Remove(&q.heap, old.index)
	}

	it := &item{ticket: t, urgency: t.Urgency, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.heap, it)
	q.byID[t.ID] = it
}

// Dequeue removes and returns the highest-urgency ticket, or nil when empty.
func (q *Queue) Dequeue() *models.Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil
	}
	it := heap.Pop(&q.heap).(*item)
	delete(q.byID, it.ticket.ID)
	return it.ticket
}

// Peek returns the highest-urgency ticket without removing it.
func (q *Queue) Peek() *models.Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil
	}
	return q.heap[0].ticket
}

// GetByID returns the queued ticket with the given id, or nil.
func (q *Queue) GetByID(id string) *models.Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it, ok := q.byID[id]; ok {
		return it.ticket
	}
	return nil
}

// Remove deletes the ticket with the given id from the queue. Returns false
// if the id is not queued.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&q.heap, it.index)
	delete(q.byID, id)
	return true
}

// UpdatePriority rekeys the entry to the new urgency while preserving its
// original arrival sequence. Returns false if the id is not queued.
func (q *Queue) UpdatePriority(id string, urgency float64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.byID[id]
	if !ok {
		return false
	}
	it.urgency = urgency
	it.ticket.Urgency = urgency
	heap.Fix(&q.heap, it.index)
	return true
}

// Size returns the number of queued tickets.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// IsEmpty reports whether the queue holds no tickets.
func (q *Queue) IsEmpty() bool {
	return q.Size() == 0
}

// All returns an unordered snapshot of the queued tickets.
func (q *Queue) All() []*models.Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.Ticket, 0, len(q.byID))
	for _, it := range q.byID {
		out = append(out, it.ticket)
	}
	return out
}

// Clear removes every ticket.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = q.heap[:0]
	q.byID = make(map[string]*item)
}

// itemHeap orders items by (urgency desc, seq asc). The urgency sign flip
// lives here in the comparator; the stored key is always positive.
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].urgency != h[j].urgency {
		return h[i].urgency > h[j].urgency
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
