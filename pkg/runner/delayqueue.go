package runner

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/skeinflow/skein/pkg/metrics"
)

// DelayQueue releases task runners only once their delayed-start deadline
// (firstSubmitTime + delayMinutes) has passed. It is safe for many
// producers and many consumers; ready elements are handed out in deadline
// order, ties broken by the smaller task instance id.
//
// The ordering lives in the queue's (deadline, runner) pairs, not in the
// runner type itself.
type DelayQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items delayHeap
}

type delayItem struct {
	deadline time.Time
	runner   *TaskRunner
}

// NewDelayQueue creates an empty queue.
func NewDelayQueue() *DelayQueue {
	q := &DelayQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Offer inserts a runner. A consumer blocked in Take is woken so an element
// with an earlier deadline than the previous head cannot be overslept.
func (q *DelayQueue) Offer(r *TaskRunner) {
	q.mu.Lock()
	heap.Push(&q.items, delayItem{deadline: r.Context().Deadline(), runner: r})
	metrics.DelayQueueDepth.Set(float64(q.items.Len()))
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Take blocks until the head element's delay has elapsed and returns it.
// It never returns a runner with positive remaining delay. Cancelling ctx
// unblocks the call.
func (q *DelayQueue) Take(ctx context.Context) (*TaskRunner, error) {
	stop := context.AfterFunc(ctx, func() { q.cond.Broadcast() })
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if q.items.Len() == 0 {
			q.cond.Wait()
			continue
		}

		head := q.items[0]
		remaining := time.Until(head.deadline)
		if remaining <= 0 {
			item := heap.Pop(&q.items).(delayItem)
			metrics.DelayQueueDepth.Set(float64(q.items.Len()))
			return item.runner, nil
		}

		// Sleep until the head ripens or the queue changes under us.
		wakeup := time.AfterFunc(remaining, func() { q.cond.Broadcast() })
		q.cond.Wait()
		wakeup.Stop()
	}
}

// Size returns the number of queued runners.
func (q *DelayQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Remove drops a specific runner from the queue, reporting whether it was
// present.
func (q *DelayQueue) Remove(r *TaskRunner) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].runner == r {
			heap.Remove(&q.items, i)
			metrics.DelayQueueDepth.Set(float64(q.items.Len()))
			return true
		}
	}
	return false
}

// delayHeap orders items by deadline, then by task instance id. A nil
// runner sorts last: a present runner always outranks nothing.
type delayHeap []delayItem

func (h delayHeap) Len() int { return len(h) }

func (h delayHeap) Less(i, j int) bool {
	if h[i].runner == nil || h[j].runner == nil {
		return h[j].runner == nil
	}
	if !h[i].deadline.Equal(h[j].deadline) {
		return h[i].deadline.Before(h[j].deadline)
	}
	return h[i].runner.TaskInstanceID() < h[j].runner.TaskInstanceID()
}

func (h delayHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayHeap) Push(x any) { *h = append(*h, x.(delayItem)) }

func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = delayItem{}
	*h = old[:n-1]
	return item
}
