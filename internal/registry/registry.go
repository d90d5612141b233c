// Package registry tracks which identities currently hold live connections.
// It is a pure data structure: no I/O, no callbacks. Connection lifecycle
// handlers own a Registry instance explicitly (never a package-level
// singleton) so tests can run independent registries side by side.
package registry

import (
	"sort"
	"sync"
)

// Option configures a Registry.
type Option func(*Registry)

// WithSingleSession enables the one-connection-per-identity policy:
// registering a new connection closes any prior ones for that identity
// (last-writer-wins eviction).
func WithSingleSession() Option {
	return func(r *Registry) {
		r.singleSession = true
	}
}

// Registry maps identities to their live connections. All mutations are
// serialized behind one mutex because register and unregister race
// constantly as sockets open and close; reads return copies so callers
// never iterate shared state outside the lock.
type Registry struct {
	mu            sync.RWMutex
	conns         map[string]map[string]*Conn // identity -> connID -> conn
	singleSession bool
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		conns: make(map[string]map[string]*Conn),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register associates conn with its identity. Under the single-session
// policy any prior connections for that identity are closed first and
// returned so the caller can log the eviction.
func (r *Registry) Register(conn *Conn) (evicted []*Conn) {
	r.mu.Lock()
	identity := conn.Identity()

	if r.singleSession {
		for _, prior := range r.conns[identity] {
			evicted = append(evicted, prior)
		}
		delete(r.conns, identity)
	}

	if r.conns[identity] == nil {
		r.conns[identity] = make(map[string]*Conn)
	}
	r.conns[identity][conn.ID()] = conn
	r.mu.Unlock()

	// Close evicted connections outside the lock: Close wakes their write
	// loops, which may call back into Unregister.
	for _, prior := range evicted {
		prior.Close()
	}
	return evicted
}

// Unregister removes conn and closes it. Removing a connection that was
// never registered (or was already evicted) is a no-op, not an error:
// disconnect events can outrun registration.
func (r *Registry) Unregister(conn *Conn) bool {
	r.mu.Lock()
	identity := conn.Identity()

	present := false
	if byID, ok := r.conns[identity]; ok {
		if _, present = byID[conn.ID()]; present {
			delete(byID, conn.ID())
			if len(byID) == 0 {
				delete(r.conns, identity)
			}
		}
	}
	r.mu.Unlock()

	conn.Close()
	return present
}

// ConnectionsFor returns the live connections of identity. The slice is a
// copy; it reflects the registry at the moment of the call.
func (r *Registry) ConnectionsFor(identity string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID := r.conns[identity]
	out := make([]*Conn, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	return out
}

// All returns every live connection.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Conn
	for _, byID := range r.conns {
		for _, c := range byID {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns the sorted set of identities holding at least one live
// connection. The presence set is always derived from the registry's
// current contents, never stored separately, so it cannot drift.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.conns))
	for identity := range r.conns {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, byID := range r.conns {
		n += len(byID)
	}
	return n
}
