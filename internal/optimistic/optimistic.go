// Package optimistic applies local edits before the server confirms them and
// puts the previous value back when it does not.
package optimistic

import (
	"context"
	"fmt"
	"log"
	"sync"

	"dinner-planner/internal/notify"
)

// Value holds state that is edited optimistically.
type Value[T any] struct {
	mu       sync.Mutex
	current  T
	clone    func(T) T
	subs     map[int]func(T)
	nextSub  int
	notifier notify.Notifier
}

// Option configures a Value.
type Option[T any] func(*Value[T])

// WithClone sets how snapshots are copied. Without it T is copied by
// assignment, which is only safe for values without shared references.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(v *Value[T]) { v.clone = clone }
}

// WithNotifier raises a notice whenever a mutation is rolled back.
func WithNotifier[T any](n notify.Notifier) Option[T] {
	return func(v *Value[T]) { v.notifier = n }
}

// New creates a Value holding initial.
func New[T any](initial T, opts ...Option[T]) *Value[T] {
	v := &Value[T]{
		current: initial,
		clone:   func(t T) T { return t },
		subs:    make(map[int]func(T)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Get returns a copy of the visible value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clone(v.current)
}

// Set replaces the visible value, for example after loading it from the server.
func (v *Value[T]) Set(t T) {
	v.mu.Lock()
	v.current = v.clone(t)
	v.mu.Unlock()
	v.publish(t)
}

// Subscribe calls fn with every new visible value. The returned func
// removes the subscription.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}

func (v *Value[T]) publish(t T) {
	v.mu.Lock()
	subs := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn(v.clone(t))
	}
}

// Apply runs one optimistic transaction. mutate computes the next value from
// a copy of the current one; that value becomes visible before persist is
// called. If persist fails the exact pre-mutation snapshot is restored and
// the persist error is returned. A mutate error aborts without any change.
func (v *Value[T]) Apply(ctx context.Context, mutate func(T) (T, error), persist func(context.Context, T) error) error {
	v.mu.Lock()
	snapshot := v.clone(v.current)
	next, err := mutate(v.clone(v.current))
	if err != nil {
		v.mu.Unlock()
		return err
	}
	v.current = v.clone(next)
	v.mu.Unlock()
	v.publish(next)

	if err := persist(ctx, v.clone(next)); err != nil {
		v.mu.Lock()
		v.current = v.clone(snapshot)
		v.mu.Unlock()
		v.publish(snapshot)

		log.Printf("Rolled back optimistic update: %v", err)
		if v.notifier != nil {
			v.notifier.Notify(ctx, notify.Error("Could not save changes", err.Error()))
		}
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}
