// Package observable provides typed state holders that notify subscribers
// of changes.
package observable

import "sync"

// Slot holds a single value of type T. Subscribers always observe the most
// recent value: each subscription buffers one value and a newer write
// replaces an unread older one. Concurrent writers race; the last one wins.
type Slot[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[int]chan T
	nextID int
}

// NewSlot creates a slot holding initial.
func NewSlot[T any](initial T) *Slot[T] {
	return &Slot[T]{value: initial, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (s *Slot[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value and notifies subscribers.
func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.publish(v)
}

// Update applies fn to the current value atomically and stores the result.
func (s *Slot[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	s.publish(s.value)
	return s.value
}

// Subscribe returns a channel that immediately yields the current value and
// then every later value that the reader keeps up with. cancel closes the
// channel; it is safe to call more than once.
func (s *Slot[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, 1)
	ch <- s.value
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// publish must be called with mu held. Only publish sends on subscriber
// channels, so after draining a stale value the send cannot block.
func (s *Slot[T]) publish(v T) {
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}
