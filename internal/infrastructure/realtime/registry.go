package realtime

import (
	"sync"
)

// Sender is the send handle the registry routes payloads through.
// *Connection satisfies it; tests substitute fakes.
type Sender interface {
	Send(payload []byte) error
}

// Registry maps a user id to the set of that user's live connections. It is
// the only mutable state shared between connection handlers and the broker
// callback, so all access goes through its synchronized API. Critical
// sections cover set mutation only; sends happen on a snapshot taken outside
// the lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[Sender]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[Sender]struct{})}
}

// Register adds s to the user's connection set, creating the set if absent.
func (r *Registry) Register(userID string, s Sender) {
	r.mu.Lock()
	set := r.conns[userID]
	if set == nil {
		set = make(map[Sender]struct{})
		r.conns[userID] = set
	}
	set[s] = struct{}{}
	r.mu.Unlock()
}

// Unregister removes s from the user's set and prunes the user entry once
// the set is empty.
func (r *Registry) Unregister(userID string, s Sender) {
	r.mu.Lock()
	if set, ok := r.conns[userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.conns, userID)
		}
	}
	r.mu.Unlock()
}

// SendToUser delivers payload to every live connection of userID and returns
// how many sends succeeded. One dead socket never blocks delivery to the
// user's other connections, and send failures never reach the caller.
func (r *Registry) SendToUser(userID string, payload []byte) int {
	r.mu.RLock()
	set := r.conns[userID]
	snapshot := make([]Sender, 0, len(set))
	for s := range set {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range snapshot {
		if err := s.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// CountForUser reports how many live connections userID has on this instance.
func (r *Registry) CountForUser(userID string) int {
	r.mu.RLock()
	n := len(r.conns[userID])
	r.mu.RUnlock()
	return n
}

// Close drops all tracked connections. The sockets themselves are owned and
// closed by the transport layer.
func (r *Registry) Close() {
	r.mu.Lock()
	r.conns = make(map[string]map[Sender]struct{})
	r.mu.Unlock()
}
