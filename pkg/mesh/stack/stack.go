// Package stack is a bounded LIFO of continuation states.
package stack

import "github.com/golang/glog"

// DefaultCapacity is the depth of a board's continuation stack.
const DefaultCapacity = 20

// Stack is a fixed capacity LIFO. A push on a full stack is logged and
// discarded, a pop or peek on an empty stack is logged and yields the
// invalid value given at construction.
type Stack[T any] struct {
	items   []T
	invalid T
}

// New creates a Stack. capacity <= 0 selects DefaultCapacity.
func New[T any](capacity int, invalid T) *Stack[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack[T]{items: make([]T, 0, capacity), invalid: invalid}
}

// Push adds v on top. It reports false when the stack is full.
func (s *Stack[T]) Push(v T) bool {
	if s.Full() {
		glog.Errorf("stack full (%d), discarding %v", cap(s.items), v)
		return false
	}
	s.items = append(s.items, v)
	return true
}

// Pop removes and returns the top value.
func (s *Stack[T]) Pop() T {
	if s.Empty() {
		glog.Error("pop on empty stack")
		return s.invalid
	}
	v := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return v
}

// Peek returns the top value without removing it.
func (s *Stack[T]) Peek() T {
	if s.Empty() {
		glog.Error("peek on empty stack")
		return s.invalid
	}
	return s.items[len(s.items)-1]
}

// Clear drops all values.
func (s *Stack[T]) Clear() {
	s.items = s.items[:0]
}

// Len is the number of values on the stack.
func (s *Stack[T]) Len() int { return len(s.items) }

// Cap is the capacity.
func (s *Stack[T]) Cap() int { return cap(s.items) }

// Empty tells whether the stack holds nothing.
func (s *Stack[T]) Empty() bool { return len(s.items) == 0 }

// Full tells whether another Push would be discarded.
func (s *Stack[T]) Full() bool { return len(s.items) == cap(s.items) }
