// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

// Package signal provides a minimal typed subscription list. State
// components expose one Signal per notification they emit; consumers
// subscribe with a callback and cancel with the returned function.
//
// This replaces the signal/slot wiring of the upstream Qt client with
// an explicit, framework-free mechanism: no process-wide event bus, no
// reflection, just an ordered list of callbacks per signal.
package signal

import "sync"

// Signal is an ordered list of subscriber callbacks for values of type
// T. The zero value is ready to use. Safe for concurrent use.
//
// Emit invokes subscribers synchronously in subscription order, in the
// caller's goroutine. Emitters must therefore not hold locks that a
// subscriber could try to re-acquire.
type Signal[T any] struct {
	mu          sync.Mutex
	subscribers []*subscriber[T]
	nextID      int
}

type subscriber[T any] struct {
	id       int
	callback func(T)
}

// Subscribe registers a callback and returns a cancel function that
// removes it. Cancel is idempotent. A callback may cancel itself: the
// removal takes effect after the current Emit completes.
func (s *Signal[T]) Subscribe(callback func(T)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &subscriber[T]{id: s.nextID, callback: callback}
	s.nextID++
	s.subscribers = append(s.subscribers, entry)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, candidate := range s.subscribers {
			if candidate.id == entry.id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers value to every current subscriber in subscription
// order. Subscribers added during an Emit do not receive that value.
func (s *Signal[T]) Emit(value T) {
	s.mu.Lock()
	snapshot := make([]*subscriber[T], len(s.subscribers))
	copy(snapshot, s.subscribers)
	s.mu.Unlock()

	for _, entry := range snapshot {
		entry.callback(value)
	}
}

// Len returns the number of current subscribers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
