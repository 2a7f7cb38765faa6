package chat

import (
	"sort"
	"sync"
)

// Registry maps channel names to channels. Channels are created lazily and
// are never removed, so a *Channel handed out stays valid for the life of
// the registry.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// GetOrCreate returns the channel called name. A missing channel is created
// when allowCreate is set; otherwise ErrNoSuchChannel is returned.
func (r *Registry) GetOrCreate(name string, allowCreate bool) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		return ch, nil
	}
	if !allowCreate {
		return nil, ErrNoSuchChannel
	}
	ch := newChannel(name)
	r.channels[name] = ch
	return ch, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// Names returns the channel names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}
