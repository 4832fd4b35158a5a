package ringbuf

import "sync"

// Synced guards a Ring with a single mutex so producer and consumer may
// live on different goroutines.
type Synced[T any] struct {
	ring *Ring[T]
	lock sync.Mutex
}

// NewSynced creates a Synced ring with the given capacity.
func NewSynced[T any](capacity int) *Synced[T] {
	return &Synced[T]{ring: New[T](capacity)}
}

// SetOverflowHandler sets the OnOverflow of the wrapped Ring.
// fn is called with the lock held and must not call back into s.
func (s *Synced[T]) SetOverflowHandler(fn func()) {
	s.lock.Lock()
	s.ring.OnOverflow = fn
	s.lock.Unlock()
}

// Cap returns the capacity.
func (s *Synced[T]) Cap() int {
	return s.ring.Cap()
}

// Used returns the number of queued elements.
func (s *Synced[T]) Used() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ring.Used()
}

// Free returns the number of elements that can still be pushed.
func (s *Synced[T]) Free() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ring.Free()
}

// IsEmpty indicates nothing is queued.
func (s *Synced[T]) IsEmpty() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ring.IsEmpty()
}

// IsFull indicates Push will be rejected.
func (s *Synced[T]) IsFull() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ring.IsFull()
}

// Push implements Ring.Push.
func (s *Synced[T]) Push(v T) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ring.Push(v)
}

// PushBulk implements Ring.PushBulk.
func (s *Synced[T]) PushBulk(vs []T) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ring.PushBulk(vs)
}

// PushAll stores all of vs or nothing.
func (s *Synced[T]) PushAll(vs []T) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ring.Free() < len(vs) {
		return false
	}
	s.ring.PushBulk(vs)
	return true
}

// Pop implements Ring.Pop.
func (s *Synced[T]) Pop() (T, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ring.Pop()
}

// PopBulk implements Ring.PopBulk.
func (s *Synced[T]) PopBulk(dst []T) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ring.PopBulk(dst)
}

// PopN implements Ring.PopN.
func (s *Synced[T]) PopN(max int) []T {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ring.PopN(max)
}

// Flush implements Ring.Flush.
func (s *Synced[T]) Flush() {
	s.lock.Lock()
	s.ring.Flush()
	s.lock.Unlock()
}
