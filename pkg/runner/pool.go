package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/skeinflow/skein/pkg/log"
)

// Pool is a fixed set of executor slots draining the delay queue. Each slot
// loops taking a ready runner and executing its state machine to
// completion; the pool is the only driver of TaskRunner.Run.
type Pool struct {
	queue *DelayQueue
	size  int
	wg    sync.WaitGroup
}

// NewPool creates a pool with the given number of slots.
func NewPool(queue *DelayQueue, size int) *Pool {
	return &Pool{queue: queue, size: size}
}

// Start launches the slots. They run until ctx is cancelled; a task already
// executing finishes its run before the slot exits.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.runSlot(ctx, i)
	}
}

// Wait blocks until every slot has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runSlot(ctx context.Context, slot int) {
	defer p.wg.Done()
	logger := log.WithComponent("worker-pool")
	logger.Debug().Int("slot", slot).Msg("executor slot started")

	for {
		r, err := p.queue.Take(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Int("slot", slot).Msg("take from delay queue failed")
			}
			logger.Debug().Int("slot", slot).Msg("executor slot stopped")
			return
		}
		r.Run(ctx)
	}
}
