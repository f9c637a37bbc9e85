// Package ringbuffer implements a fixed-capacity FIFO sample buffer used by
// the STFT processor to accumulate input between hops and to hold
// overlap-add output before it is drained to the audio callback.
package ringbuffer

import "fmt"

// Ring is a fixed-capacity circular FIFO of float64 samples. It is not safe
// for concurrent use; callers that share a Ring across goroutines must
// synchronize externally.
type Ring struct {
	data []float64
	head int // next read position
	tail int // next write position
	size int // number of valid samples currently queued
}

// New creates a Ring with the given capacity. Capacity must be positive.
func New(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ringbuffer: capacity must be > 0: %d", capacity)
	}
	return &Ring{data: make([]float64, capacity)}, nil
}

// Capacity returns the fixed buffer capacity.
func (r *Ring) Capacity() int { return len(r.data) }

// Len returns the number of samples currently queued. It always satisfies
// 0 <= Len() <= Capacity(), with Len() == Capacity() when the buffer is
// completely full.
func (r *Ring) Len() int { return r.size }

// Free returns the number of additional samples that can be enqueued
// before the buffer is full.
func (r *Ring) Free() int { return len(r.data) - r.size }

// Reset empties the buffer without reallocating, zeroing head/tail/size.
func (r *Ring) Reset() {
	r.head, r.tail, r.size = 0, 0, 0
}

// Enqueue appends samples to the tail of the buffer. It returns an error if
// there is not enough free space; partial writes never occur.
func (r *Ring) Enqueue(samples []float64) error {
	if len(samples) > r.Free() {
		return fmt.Errorf("ringbuffer: enqueue of %d samples exceeds free space %d", len(samples), r.Free())
	}
	capacity := len(r.data)
	for _, s := range samples {
		r.data[r.tail] = s
		r.tail = (r.tail + 1) % capacity
	}
	r.size += len(samples)
	return nil
}

// Dequeue removes and returns the oldest n samples. It returns an error if
// fewer than n samples are queued. It allocates the returned slice; callers
// on a no-allocation path (e.g. stft.Processor.Process) should use
// DequeueInto or Advance instead.
func (r *Ring) Dequeue(n int) ([]float64, error) {
	out := make([]float64, n)
	if err := r.DequeueInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

// DequeueInto copies the oldest len(dst) samples into dst and removes them
// from the buffer, without allocating. It returns an error if fewer than
// len(dst) samples are queued.
func (r *Ring) DequeueInto(dst []float64) error {
	n := len(dst)
	if n > r.size {
		return fmt.Errorf("ringbuffer: dequeue of %d samples exceeds queued %d", n, r.size)
	}
	capacity := len(r.data)
	for i := 0; i < n; i++ {
		dst[i] = r.data[r.head]
		r.head = (r.head + 1) % capacity
	}
	r.size -= n
	return nil
}

// Advance removes the oldest n samples without copying them anywhere,
// for callers that only need to discard already-consumed input.
func (r *Ring) Advance(n int) error {
	if n > r.size {
		return fmt.Errorf("ringbuffer: advance of %d samples exceeds queued %d", n, r.size)
	}
	capacity := len(r.data)
	r.head = (r.head + n) % capacity
	r.size -= n
	return nil
}

// Peek returns a copy of the oldest n samples without removing them. It
// allocates the returned slice; callers on a no-allocation path should use
// PeekInto instead.
func (r *Ring) Peek(n int) ([]float64, error) {
	out := make([]float64, n)
	if err := r.PeekInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

// PeekInto copies the oldest len(dst) samples into dst without removing
// them and without allocating. It returns an error if fewer than len(dst)
// samples are queued.
func (r *Ring) PeekInto(dst []float64) error {
	n := len(dst)
	if n > r.size {
		return fmt.Errorf("ringbuffer: peek of %d samples exceeds queued %d", n, r.size)
	}
	capacity := len(r.data)
	idx := r.head
	for i := 0; i < n; i++ {
		dst[i] = r.data[idx]
		idx = (idx + 1) % capacity
	}
	return nil
}

// AddAt accumulates values into the buffer starting at a logical offset
// from the current head, wrapping around capacity. This is the primitive
// overlap-add uses to sum an overlapping synthesis frame into the output
// ring without first linearizing it into a flat slice.
func (r *Ring) AddAt(offset int, values []float64) error {
	if offset < 0 {
		return fmt.Errorf("ringbuffer: AddAt offset must be >= 0: %d", offset)
	}
	capacity := len(r.data)
	if offset+len(values) > capacity {
		return fmt.Errorf("ringbuffer: AddAt range [%d,%d) exceeds capacity %d", offset, offset+len(values), capacity)
	}
	idx := (r.head + offset) % capacity
	for _, v := range values {
		r.data[idx] += v
		idx = (idx + 1) % capacity
	}
	if offset+len(values) > r.size {
		r.size = offset + len(values)
	}
	return nil
}
