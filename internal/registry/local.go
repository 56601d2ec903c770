package registry

// Local is a per-skill overlay over the global Store: the set of keys
// this view has inserted, plus a back-reference to the Store itself.
// Cloning before a skill loads and diffing afterwards yields exactly
// what that skill contributed, which is the rollback primitive.
type Local[T Capability] struct {
	global *Store[T]
	keys   map[string]struct{}
}

func NewLocal[T Capability](global *Store[T]) *Local[T] {
	return &Local[T]{global: global, keys: make(map[string]struct{})}
}

// Insert registers in the global store and records the key locally.
func (l *Local[T]) Insert(skill, name string, v T) (Handle, error) {
	h, err := l.global.Insert(skill, name, v)
	if err != nil {
		return Handle{}, err
	}
	l.keys[Mangle(skill, name)] = struct{}{}
	return h, nil
}

// Get resolves a mangled key through the local view.
func (l *Local[T]) Get(key string) (T, bool) {
	if _, ok := l.keys[key]; !ok {
		var zero T
		return zero, false
	}
	return l.global.Get(key)
}

// HandleFor returns the global handle for a locally known key.
func (l *Local[T]) HandleFor(key string) (Handle, bool) {
	if _, ok := l.keys[key]; !ok {
		return Handle{}, false
	}
	return l.global.HandleFor(key)
}

// Clone snapshots the key set; the clone shares the global
// back-reference. O(len(keys)).
func (l *Local[T]) Clone() *Local[T] {
	keys := make(map[string]struct{}, len(l.keys))
	for k := range l.keys {
		keys[k] = struct{}{}
	}
	return &Local[T]{global: l.global, keys: keys}
}

// Minus returns the keys present here but not in other, as a view over
// the same global store.
func (l *Local[T]) Minus(other *Local[T]) *Local[T] {
	out := &Local[T]{global: l.global, keys: make(map[string]struct{})}
	for k := range l.keys {
		if _, ok := other.keys[k]; !ok {
			out.keys[k] = struct{}{}
		}
	}
	return out
}

// RemoveFromGlobal deletes every key of this view from the global
// store, bumping slot generations so outstanding handles go dead.
func (l *Local[T]) RemoveFromGlobal() {
	l.global.mu.Lock()
	defer l.global.mu.Unlock()
	for k := range l.keys {
		l.global.removeLocked(k)
	}
}

func (l *Local[T]) Len() int { return len(l.keys) }
