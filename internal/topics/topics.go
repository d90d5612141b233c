// Package topics provides typed topic definitions for the pub/sub bus.
// Every package that publishes declares its topics once, in a topics.go
// file, and registers them at startup so collisions surface immediately
// instead of as silently crossed wires.
package topics

import (
	"fmt"
	"sort"
	"sync"
)

// Topic is a strongly-typed topic identifier. Components pass the Topic
// value around instead of raw strings so a typo cannot create a new topic.
type Topic struct {
	name        string
	description string
	example     string
}

// Config holds the definition of a new topic.
type Config struct {
	Name        string // Unique identifier, dot-separated (e.g. "chat.message.created")
	Description string // Human-readable documentation
	Example     string // Example payload
}

// Define creates a new typed topic. It does not register it; callers do
// that explicitly so tests can use isolated registries.
func Define(cfg Config) Topic {
	return Topic{
		name:        cfg.Name,
		description: cfg.Description,
		example:     cfg.Example,
	}
}

// Name returns the unique string identifier for this topic.
func (t Topic) Name() string { return t.name }

// Description returns human-readable documentation.
func (t Topic) Description() string { return t.description }

// Example returns an example payload.
func (t Topic) Example() string { return t.example }

func (t Topic) String() string { return t.name }

// Registry is the central index of declared topics.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Topic
}

// NewRegistry creates an empty topic registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Topic)}
}

// Register adds a topic to the registry. Re-registering the same topic is
// a no-op so packages can register idempotently at init time; registering
// a different topic under an existing name is an error.
func (r *Registry) Register(t Topic) error {
	if t.name == "" {
		return fmt.Errorf("topic name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[t.name]; ok {
		if existing == t {
			return nil
		}
		return fmt.Errorf("topic %q already registered with a different definition", t.name)
	}
	r.entries[t.name] = t
	return nil
}

// Get retrieves a topic by name.
func (r *Registry) Get(name string) (Topic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.entries[name]
	return t, ok
}

// List returns all registered topics sorted by name.
func (r *Registry) List() []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Topic, 0, len(r.entries))
	for _, t := range r.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Count returns the number of registered topics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// MustRegister registers topics with the default registry and panics on
// error, for static initialization.
func MustRegister(ts ...Topic) {
	for _, t := range ts {
		if err := Default().Register(t); err != nil {
			panic(fmt.Sprintf("failed to register topic %s: %v", t.Name(), err))
		}
	}
}
