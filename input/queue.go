package input

import (
	"errors"
	"sync"

	"github.com/murkland/ringbuf"
)

var ErrFull = errors.New("input queue full")

// Edge is a single button transition.
type Edge struct {
	Button  uint8
	Pressed bool
}

// Queue holds button edges until the next step boundary.
type Queue struct {
	mu sync.Mutex
	q  *ringbuf.RingBuf[Edge]
}

func NewQueue(n int) *Queue {
	return &Queue{
		q: ringbuf.New[Edge](n),
	}
}

// Add queues an edge, failing if the queue is full.
func (q *Queue) Add(edge Edge) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.q.Free() == 0 {
		return ErrFull
	}
	q.q.Push([]Edge{edge})
	return nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.q.Used()
}

// Pop removes the oldest queued edge.
func (q *Queue) Pop() (Edge, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.q.Used() == 0 {
		return Edge{}, false
	}
	var edge [1]Edge
	q.q.Pop(edge[:], 0)
	return edge[0], true
}
