package orders

import (
	"sync"

	"github.com/google/uuid"
)

// ConfirmationLocks serializes confirmation attempts per cart. A second
// confirm arriving while one is in flight is rejected immediately instead of
// queueing behind it.
type ConfirmationLocks struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

// NewConfirmationLocks builds an empty lock table.
func NewConfirmationLocks() *ConfirmationLocks {
	return &ConfirmationLocks{held: make(map[uuid.UUID]struct{})}
}

// TryAcquire claims the cart's confirmation slot. It never blocks.
func (l *ConfirmationLocks) TryAcquire(cartID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[cartID]; busy {
		return false
	}
	l.held[cartID] = struct{}{}
	return true
}

// Release frees the cart's confirmation slot. Releasing an unheld slot is a
// no-op.
func (l *ConfirmationLocks) Release(cartID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, cartID)
}
