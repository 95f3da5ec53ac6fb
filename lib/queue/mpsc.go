package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is a single element of the intrusive linked list.
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// MPSC is a lock-free multi-producer single-consumer queue. Producers
// append with atomic CAS operations; a dedicated feeder goroutine moves
// items into the Recv channel so the consumer can select on it.
type MPSC[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	out    chan *T
	feeder sync.WaitGroup
	closed atomic.Bool
	depth  atomic.Int64

	// Condition variable so the feeder can sleep while the queue is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSC creates a queue and starts its feeder goroutine.
func NewMPSC[T any]() *MPSC[T] {
	sentinel := &node[T]{}

	q := &MPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.feeder.Add(1)
	go q.feed()

	return q
}

// Push appends an item. It returns false if the item is nil or the queue
// has been closed; the item is dropped in both cases.
func (q *MPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// The tail CAS may lose to a helping producer; the tail
				// still converges, so the failure is ignored.
				q.tail.CompareAndSwap(tailNode, newNode)
				q.depth.Add(1)
				q.cond.Signal()
				return true
			}
		} else {
			// Another producer finished its append but has not moved the
			// tail yet; help it along before retrying.
			q.tail.CompareAndSwap(tailNode, next)
		}
		runtime.Gosched()
	}
}

// feed moves items from the linked list into the out channel and releases
// consumed nodes for the garbage collector.
func (q *MPSC[T]) feed() {
	defer q.feeder.Done()
	defer close(q.out)

	for {
		delivered := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			delivered = true

			value := next.value
			q.head.Store(next)
			q.out <- value
			q.depth.Add(-1)
			next.value = nil
		}

		if !delivered && q.closed.Load() {
			return
		}

		if !delivered {
			q.mu.Lock()
			head := q.head.Load()
			if head.next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the receive side of the queue for use in select statements.
// The channel is closed once the queue is closed and fully drained.
func (q *MPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close stops further writes. Items already queued are still delivered.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	q.cond.Signal()
}

// IsClosed reports whether the queue accepts further writes.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the current queue depth. The value is approximate under
// concurrent pushes but cheap enough to check on every pump tick.
func (q *MPSC[T]) Len() int {
	n := q.depth.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
