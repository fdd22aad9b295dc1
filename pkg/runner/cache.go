package runner

import (
	"sync"

	"github.com/skeinflow/skein/pkg/types"
)

// Cache tracks the in-flight task executions of this worker process, keyed
// by task instance id. A runner is registered before it is enqueued and
// removed on its terminal transition; removal is idempotent. The cache is
// also the routing table for externally requested kills.
type Cache struct {
	mu      sync.RWMutex
	runners map[int]*TaskRunner
}

// NewCache creates an empty execution cache.
func NewCache() *Cache {
	return &Cache{runners: make(map[int]*TaskRunner)}
}

// Register adds a runner. A second registration for the same task instance
// id replaces the first.
func (c *Cache) Register(r *TaskRunner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runners[r.TaskInstanceID()] = r
}

// Get returns the runner for a task instance id.
func (c *Cache) Get(taskInstanceID int) (*TaskRunner, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runners[taskInstanceID]
	return r, ok
}

// Context returns the execution context for a task instance id.
func (c *Cache) Context(taskInstanceID int) (*types.TaskExecutionContext, bool) {
	r, ok := c.Get(taskInstanceID)
	if !ok {
		return nil, false
	}
	return r.Context(), true
}

// Remove drops a task instance from the cache. Removing an absent id is a
// no-op.
func (c *Cache) Remove(taskInstanceID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runners, taskInstanceID)
}

// Size returns the number of in-flight executions.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.runners)
}
