// pkg/memcache/pix_sessions.go
package mem

import (
	"sync"
	"time"
)

// SessionStore keeps payment sessions in process memory, indexed by session
// id and by owner. An owner has at most one current session.
type SessionStore[T any] struct {
	mu      sync.RWMutex
	data    map[string]entry[T]
	byOwner map[string]string
	now     func() time.Time
}

type entry[T any] struct {
	owner     string
	value     T
	expiresAt time.Time
}

func NewSessionStore[T any]() *SessionStore[T] {
	return &SessionStore[T]{
		data:    make(map[string]entry[T]),
		byOwner: make(map[string]string),
		now:     time.Now,
	}
}

// Put registers value as the owner's current session and returns the session
// it replaced, if any.
func (s *SessionStore[T]) Put(id, owner string, value T, ttl time.Duration) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev T
	var replaced bool
	if prevID, ok := s.byOwner[owner]; ok && prevID != id {
		if e, ok := s.data[prevID]; ok {
			prev, replaced = e.value, true
		}
	}

	s.data[id] = entry[T]{owner: owner, value: value, expiresAt: s.now().Add(ttl)}
	s.byOwner[owner] = id
	return prev, replaced
}

// Get returns the session if it belongs to owner and has not been evicted.
func (s *SessionStore[T]) Get(id, owner string) (T, bool) {
	s.mu.RLock()
	e, ok := s.data[id]
	s.mu.RUnlock()

	var zero T
	if !ok || e.owner != owner {
		return zero, false
	}
	if s.now().After(e.expiresAt) {
		s.Remove(id)
		return zero, false
	}
	return e.value, true
}

// Current returns the owner's most recent session.
func (s *SessionStore[T]) Current(owner string) (T, bool) {
	s.mu.RLock()
	id, ok := s.byOwner[owner]
	s.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	return s.Get(id, owner)
}

func (s *SessionStore[T]) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return
	}
	delete(s.data, id)
	if s.byOwner[e.owner] == id {
		delete(s.byOwner, e.owner)
	}
}

// Evict drops every session past its retention and returns how many went.
func (s *SessionStore[T]) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, id)
			if s.byOwner[e.owner] == id {
				delete(s.byOwner, e.owner)
			}
			n++
		}
	}
	return n
}

// Range calls fn for every stored session.
func (s *SessionStore[T]) Range(fn func(id string, value T)) {
	s.mu.RLock()
	snapshot := make(map[string]T, len(s.data))
	for id, e := range s.data {
		snapshot[id] = e.value
	}
	s.mu.RUnlock()

	for id, v := range snapshot {
		fn(id, v)
	}
}

func (s *SessionStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
