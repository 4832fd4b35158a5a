// Package ringbuf provides fixed-capacity circular FIFO buffers.
package ringbuf

// Ring is a fixed-capacity circular FIFO.
// One slot is kept empty to tell full from empty, so a Ring with capacity
// N holds at most N-1 elements.
// Ring is not safe for concurrent use, see Synced.
type Ring[T any] struct {
	// OnOverflow is called when Push is rejected because the ring is full.
	OnOverflow func()

	buf  []T
	head int // next slot to write
	tail int // next slot to read
	mask int // size-1 when size is a power of two, otherwise 0
}

// Bytes is the Ring of bytes used to stage outbound frames.
type Bytes = Ring[byte]

// New creates a Ring with the given capacity, which must be at least 2.
func New[T any](capacity int) *Ring[T] {
	if capacity < 2 {
		panic("ringbuf: capacity must be at least 2")
	}
	r := &Ring[T]{buf: make([]T, capacity)}
	if capacity&(capacity-1) == 0 {
		r.mask = capacity - 1
	}
	return r
}

// NewBytes creates a Ring of bytes.
func NewBytes(capacity int) *Bytes {
	return New[byte](capacity)
}

func (r *Ring[T]) next(idx int) int {
	idx++
	if r.mask != 0 {
		return idx & r.mask
	}
	if idx == len(r.buf) {
		idx = 0
	}
	return idx
}

// Cap returns the capacity including the reserved slot.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Used returns the number of queued elements.
func (r *Ring[T]) Used() int {
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return len(r.buf) - r.tail + r.head
}

// Free returns the number of elements that can still be pushed.
func (r *Ring[T]) Free() int {
	return len(r.buf) - r.Used() - 1
}

// IsEmpty indicates nothing is queued.
func (r *Ring[T]) IsEmpty() bool {
	return r.head == r.tail
}

// IsFull indicates Push will be rejected.
func (r *Ring[T]) IsFull() bool {
	return r.next(r.head) == r.tail
}

// Push appends v. It returns false and calls OnOverflow if the ring is full.
func (r *Ring[T]) Push(v T) bool {
	idx := r.next(r.head)
	if idx == r.tail {
		if fn := r.OnOverflow; fn != nil {
			fn()
		}
		return false
	}
	r.buf[r.head] = v
	r.head = idx
	return true
}

// PushBulk appends elements until the ring is full and returns how many
// were stored. Stored elements are not rolled back.
func (r *Ring[T]) PushBulk(vs []T) int {
	for n, v := range vs {
		if !r.Push(v) {
			return n
		}
	}
	return len(vs)
}

// Pop removes the oldest element.
func (r *Ring[T]) Pop() (v T, ok bool) {
	if r.head == r.tail {
		return v, false
	}
	v = r.buf[r.tail]
	r.tail = r.next(r.tail)
	return v, true
}

// PopBulk fills dst with the oldest elements and returns how many were
// removed.
func (r *Ring[T]) PopBulk(dst []T) int {
	n := 0
	for n < len(dst) && r.head != r.tail {
		dst[n] = r.buf[r.tail]
		r.tail = r.next(r.tail)
		n++
	}
	return n
}

// PopN removes up to max elements into a new slice.
func (r *Ring[T]) PopN(max int) []T {
	if used := r.Used(); max > used {
		max = used
	}
	if max <= 0 {
		return nil
	}
	out := make([]T, max)
	r.PopBulk(out)
	return out
}

// Flush discards everything.
func (r *Ring[T]) Flush() {
	r.head, r.tail = 0, 0
}
