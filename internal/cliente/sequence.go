package cliente

import (
	"fmt"
	"sync"
)

// Sequence hands out monotonically increasing CLT identifiers. It is safe for
// concurrent use; SyncFrom keeps it ahead of identifiers observed in storage
// so a process never re-issues a number it has already seen.
type Sequence struct {
	mu   sync.Mutex
	last int
}

// NewSequence returns a sequence starting before the first identifier.
func NewSequence() *Sequence {
	return &Sequence{}
}

// SyncFrom advances the sequence to at least n.
func (s *Sequence) SyncFrom(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.last {
		s.last = n
	}
}

// Next allocates the next identifier, formatted as CLT- plus a zero-padded
// number of at least four digits.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return FormatID(s.last)
}

// FormatID renders a numeric suffix as a canonical CLT identifier.
func FormatID(n int) string {
	return fmt.Sprintf("CLT-%04d", n)
}
