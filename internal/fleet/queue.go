package fleet

import "gonum.org/v1/gonum/spatial/r3"

// TargetQueue is a FIFO of waypoints. It is only ever drained from the front,
// appended at the back, or replaced wholesale.
type TargetQueue struct {
	items []r3.Vec
	head  int
}

func (q *TargetQueue) Len() int {
	return len(q.items) - q.head
}

func (q *TargetQueue) Empty() bool {
	return q.Len() == 0
}

func (q *TargetQueue) Push(p r3.Vec) {
	q.items = append(q.items, p)
}

// Front returns the oldest waypoint; ok is false on an empty queue.
func (q *TargetQueue) Front() (r3.Vec, bool) {
	if q.Empty() {
		return r3.Vec{}, false
	}
	return q.items[q.head], true
}

// Pop removes and returns the oldest waypoint.
func (q *TargetQueue) Pop() (r3.Vec, bool) {
	front, ok := q.Front()
	if !ok {
		return r3.Vec{}, false
	}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return front, true
}

// Clear drains every waypoint.
func (q *TargetQueue) Clear() {
	q.items = q.items[:0]
	q.head = 0
}

// Reset drains the queue and leaves exactly one waypoint.
func (q *TargetQueue) Reset(p r3.Vec) {
	q.Clear()
	q.Push(p)
}

// Points returns the queued waypoints front-first without consuming them.
func (q *TargetQueue) Points() []r3.Vec {
	if q.Empty() {
		return nil
	}
	out := make([]r3.Vec, q.Len())
	copy(out, q.items[q.head:])
	return out
}

func (q TargetQueue) clone() TargetQueue {
	return TargetQueue{items: q.Points()}
}
