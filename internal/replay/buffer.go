// Package replay provides the fixed-capacity experience store the agent
// learns from.
package replay

import (
	"errors"
	"fmt"
	"math/rand"

	"order-exec-lab/internal/domain"
)

// Buffer errors.
var (
	// ErrInvalidCapacity is returned for a non-positive capacity.
	ErrInvalidCapacity = errors.New("buffer capacity must be positive")

	// ErrInsufficientData is returned when Sample asks for more transitions
	// than are stored. Callers treat this as recoverable and skip the
	// learning step.
	ErrInsufficientData = errors.New("not enough transitions stored")
)

// Buffer is a fixed-capacity ring of transitions. Once full, each Push
// overwrites the oldest entry. The buffer owns a deep copy of every pushed
// transition. Not safe for concurrent use; each training run owns its buffer.
type Buffer struct {
	data []domain.Transition
	next int
	size int
}

// New creates a buffer holding at most capacity transitions.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Buffer{data: make([]domain.Transition, capacity)}, nil
}

// Len reports the number of stored transitions.
func (b *Buffer) Len() int { return b.size }

// Cap reports the buffer capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Push stores a copy of t, evicting the oldest entry when at capacity.
func (b *Buffer) Push(t domain.Transition) {
	b.data[b.next] = t.Clone()
	b.next = (b.next + 1) % len(b.data)
	if b.size < len(b.data) {
		b.size++
	}
}

// Sample draws batchSize distinct transitions uniformly at random. The result
// carries no ordering guarantee; callers must not depend on insertion order.
func (b *Buffer) Sample(rng *rand.Rand, batchSize int) ([]domain.Transition, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrInsufficientData, batchSize)
	}
	if b.size < batchSize {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrInsufficientData, b.size, batchSize)
	}
	idx := rng.Perm(b.size)[:batchSize]
	out := make([]domain.Transition, batchSize)
	for i, j := range idx {
		out[i] = b.data[j]
	}
	return out, nil
}
