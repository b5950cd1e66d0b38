// Package bus arbitrates access to a peripheral bus shared by more than
// one chip-select. It guarantees that exactly one holder has the bus
// open at any instant, and that the underlying device is always closed
// before the next holder is admitted, even when opening the device
// itself fails.
package bus

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Handle is the opaque, per-acquisition view of the bus device. Drivers
// talk to the hardware exclusively through this interface; they never
// see the underlying transport directly.
type Handle interface {
	Transfer(write []byte, read []byte) error
	Close() error
}

// Device opens a Handle at a given chip-select and clock rate. A real
// implementation drives spidev or an equivalent kernel interface; tests
// use a fake.
type Device interface {
	Open(chipSelect int, clockHz int64) (Handle, error)
}

// Arbiter serializes Open calls across every chip-select on one shared
// bus using a weighted semaphore of weight one, so acquisition can be
// made cancellable via context the same way the rest of the gateway's
// blocking operations are.
type Arbiter struct {
	sem *semaphore.Weighted
	dev Device

	mu      sync.Mutex
	holders int
}

// NewArbiter returns an Arbiter guarding dev.
func NewArbiter(dev Device) *Arbiter {
	return &Arbiter{sem: semaphore.NewWeighted(1), dev: dev}
}

// Lease represents a held bus acquisition. Close releases it exactly
// once; calling Close more than once is a no-op.
type Lease struct {
	handle Handle
	arb    *Arbiter
	once   sync.Once
}

// Handle returns the device handle for use within the lease's scope.
func (l *Lease) Handle() Handle { return l.handle }

// Close closes the underlying device and releases exclusivity. It is
// safe to call multiple times and safe to call even if the device was
// never successfully opened (Acquire never returns such a Lease, but
// callers that wrap Acquire in their own retry logic may still defer
// Close defensively).
func (l *Lease) Close() error {
	var err error
	l.once.Do(func() {
		if l.handle != nil {
			err = l.handle.Close()
		}
		l.arb.mu.Lock()
		l.arb.holders--
		l.arb.mu.Unlock()
		l.arb.sem.Release(1)
	})
	return err
}

// Acquire blocks until the bus is exclusively available, then opens the
// device at the given chip-select and clock rate. If opening fails,
// exclusivity is released before the error is returned — the caller
// never receives a Lease without a live handle, and the arbiter never
// retains exclusivity without a Lease having been handed out.
func (a *Arbiter) Acquire(ctx context.Context, chipSelect int, clockHz int64) (*Lease, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("bus: acquire: %w", err)
	}

	h, err := a.dev.Open(chipSelect, clockHz)
	if err != nil {
		a.sem.Release(1)
		return nil, fmt.Errorf("bus: open chip-select %d: %w", chipSelect, err)
	}

	a.mu.Lock()
	a.holders++
	a.mu.Unlock()

	return &Lease{handle: h, arb: a}, nil
}
