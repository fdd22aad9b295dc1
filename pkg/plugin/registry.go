package plugin

import (
	"fmt"
	"sync"
)

// ErrChannelNotFound is returned when no channel is registered for a task
// type. The runner reports it as a distinct failure so operators can spot a
// deployment missing a plugin.
var ErrChannelNotFound = fmt.Errorf("task plugin not found")

// Registry maps task types to the channels that create their tasks.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Register binds a channel to a task type, replacing any previous binding.
func (r *Registry) Register(taskType string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[taskType] = ch
}

// Get returns the channel for taskType, or ErrChannelNotFound.
func (r *Registry) Get(taskType string) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s, please check plugin configuration", ErrChannelNotFound, taskType)
	}
	return ch, nil
}

// Types lists the registered task types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.channels))
	for t := range r.channels {
		out = append(out, t)
	}
	return out
}
