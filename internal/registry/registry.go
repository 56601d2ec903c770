package registry

import (
	"sort"
	"sync"

	"voiced/pkg/types"
)

// Capability is the minimal contract every registered object satisfies.
type Capability interface {
	Name() string
}

// Action is invoked when an utterance resolves to an intent bound to it.
type Action interface {
	Capability
	Call(ctx *types.RequestContext) (types.Answer, error)
}

// Signal is invoked when a named event fires (e.g. empty_reco).
type Signal interface {
	Capability
	Event(ctx *types.RequestContext) (types.Answer, error)
}

// Query answers data requests from skills or poll signals.
type Query interface {
	Capability
	Execute(params map[string]string) (map[string]string, error)
	// Monitorable queries may be polled periodically by a signal source.
	IsMonitorable() bool
}

// Mangle builds the globally unique key for a skill-owned name.
// The mangled form is the only key ever exposed to the NLU engine and
// the stores, which makes cross-skill collisions impossible.
func Mangle(skill, name string) string {
	return "__" + skill + "__" + name
}

// Handle is a weak reference into a Store: a slot index plus the
// generation the slot had at insertion. Resolving a handle after the
// slot was removed (or reused) fails instead of yielding a stale object.
type Handle struct {
	idx uint32
	gen uint32
}

type slot[T Capability] struct {
	val  T
	gen  uint32
	live bool
}

// Store is a keyed, process-wide capability registry. A single mutex
// guards readers and writers alike: registration and dispatch rates are
// low, per-frame audio never touches the store.
type Store[T Capability] struct {
	mu    sync.Mutex
	keys  map[string]Handle
	slots []slot[T]
	free  []uint32
}

func NewStore[T Capability]() *Store[T] {
	return &Store[T]{keys: make(map[string]Handle)}
}

// Insert stores v under the mangled (skill, name) key. The key must not
// exist yet; a duplicate insert fails and leaves the first registration
// intact.
func (s *Store[T]) Insert(skill, name string, v T) (Handle, error) {
	key := Mangle(skill, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return Handle{}, duplicateKeyError{key: key}
	}
	var h Handle
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[idx].val = v
		s.slots[idx].live = true
		h = Handle{idx: idx, gen: s.slots[idx].gen}
	} else {
		s.slots = append(s.slots, slot[T]{val: v, live: true})
		h = Handle{idx: uint32(len(s.slots) - 1)}
	}
	s.keys[key] = h
	return h, nil
}

// Get looks up a capability by its mangled key.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.keys[key]
	if !ok {
		var zero T
		return zero, false
	}
	return s.slots[h.idx].val, true
}

// HandleFor returns the handle registered under the mangled key.
func (s *Store[T]) HandleFor(key string) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.keys[key]
	return h, ok
}

// Resolve dereferences a handle, failing if the slot was removed since
// the handle was issued.
func (s *Store[T]) Resolve(h Handle) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(h)
}

func (s *Store[T]) resolveLocked(h Handle) (T, bool) {
	if int(h.idx) >= len(s.slots) {
		var zero T
		return zero, false
	}
	sl := &s.slots[h.idx]
	if !sl.live || sl.gen != h.gen {
		var zero T
		return zero, false
	}
	return sl.val, true
}

// Remove deletes the mangled key and bumps the slot generation so every
// outstanding handle observes the removal.
func (s *Store[T]) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(key)
}

func (s *Store[T]) removeLocked(key string) bool {
	h, ok := s.keys[key]
	if !ok {
		return false
	}
	delete(s.keys, key)
	sl := &s.slots[h.idx]
	var zero T
	sl.val = zero
	sl.live = false
	sl.gen++
	s.free = append(s.free, h.idx)
	return true
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Keys returns the mangled keys in sorted order.
func (s *Store[T]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
