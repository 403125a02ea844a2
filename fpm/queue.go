package fpm

import (
	"sync"
	"sync/atomic"

	"github.com/routingd/fpmdplane/engine"
)

// ContextQueue is the mutex-guarded FIFO of dataplane contexts handed
// from the engine thread to the plugin thread.
type ContextQueue struct {
	mu    sync.Mutex
	items []*engine.DataplaneContext

	length uint32 // atomic: ctxqueue_len
	peak   uint32 // atomic: ctxqueue_len_peak
}

// NewContextQueue returns an empty ContextQueue.
func NewContextQueue() *ContextQueue {
	return &ContextQueue{}
}

// Push appends ctx to the queue. The length counter is incremented
// before the append completes, so Len() never undercounts the true
// queue length even if read concurrently.
func (q *ContextQueue) Push(ctx *engine.DataplaneContext) {
	n := atomic.AddUint32(&q.length, 1)
	for {
		peak := atomic.LoadUint32(&q.peak)
		if n <= peak || atomic.CompareAndSwapUint32(&q.peak, peak, n) {
			break
		}
	}

	q.mu.Lock()
	q.items = append(q.items, ctx)
	q.mu.Unlock()
}

// PushFront re-inserts ctx at the front of the queue, for a context
// that was popped but could not be enqueued this round.
func (q *ContextQueue) PushFront(ctx *engine.DataplaneContext) {
	n := atomic.AddUint32(&q.length, 1)
	for {
		peak := atomic.LoadUint32(&q.peak)
		if n <= peak || atomic.CompareAndSwapUint32(&q.peak, peak, n) {
			break
		}
	}

	q.mu.Lock()
	q.items = append([]*engine.DataplaneContext{ctx}, q.items...)
	q.mu.Unlock()
}

// Pop removes and returns the oldest context, or nil if the queue is
// empty.
func (q *ContextQueue) Pop() *engine.DataplaneContext {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}
	ctx := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()

	atomic.AddUint32(&q.length, ^uint32(0)) // -1
	return ctx
}

// Len returns the queue's current length as tracked by the atomic
// counter; it is never smaller than the true queue length.
func (q *ContextQueue) Len() uint32 {
	return atomic.LoadUint32(&q.length)
}

// Peak returns the largest Len() value observed.
func (q *ContextQueue) Peak() uint32 {
	return atomic.LoadUint32(&q.peak)
}
