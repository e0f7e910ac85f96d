// Package reactive holds observable state shared between the containers and
// whatever renders them.
//
// A Value guards a state struct behind a mutex. Readers take copies with Load;
// writers mutate through Update, and subscribers are told about every change
// after the lock is released. Network calls never run under the lock.
package reactive

import "sync"

// Value is an observable container for a state snapshot of type T.
// T should be a value type; pointer fields inside T must be replaced, not
// mutated in place, so earlier snapshots stay stable.
type Value[T any] struct {
	mu      sync.Mutex
	state   T
	version uint64
	nextID  uint64
	subs    map[uint64]func(T)

	// notifyMu serializes writers so snapshots reach subscribers in version order.
	notifyMu sync.Mutex
}

// New returns a Value seeded with initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{state: initial, subs: make(map[uint64]func(T))}
}

// Load returns a copy of the current state.
func (v *Value[T]) Load() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Version reports how many changes have been applied.
func (v *Value[T]) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

// Update applies fn to the state under the lock. fn reports whether it
// changed anything; subscribers are only notified when it did. Update returns
// the resulting snapshot and the changed flag.
//
// fn must not block and must not call back into the Value. Subscribers must
// not call Update synchronously.
func (v *Value[T]) Update(fn func(*T) bool) (T, bool) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	changed := fn(&v.state)
	snapshot := v.state
	if !changed {
		v.mu.Unlock()
		return snapshot, false
	}
	v.version++
	subs := make([]func(T), 0, len(v.subs))
	for _, sub := range v.subs {
		subs = append(subs, sub)
	}
	v.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
	return snapshot, true
}

// Set replaces the state wholesale and notifies subscribers.
func (v *Value[T]) Set(state T) {
	v.Update(func(s *T) bool {
		*s = state
		return true
	})
}

// Subscribe registers fn to receive every changed snapshot. The returned
// cancel function is idempotent.
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.subs[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
		})
	}
}

// Changes returns a channel that receives a signal after each change, and a
// cancel function that stops delivery. Signals coalesce: a slow reader sees at
// least one pending signal, not one per change.
func (v *Value[T]) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	cancel := v.Subscribe(func(T) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch, cancel
}
