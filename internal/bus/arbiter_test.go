package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	closed int32
}

func (h *fakeHandle) Transfer(w, r []byte) error { return nil }
func (h *fakeHandle) Close() error {
	atomic.AddInt32(&h.closed, 1)
	return nil
}

type fakeDevice struct {
	mu        sync.Mutex
	openCount int
	failNext  bool
	last      *fakeHandle
}

func (d *fakeDevice) Open(cs int, clockHz int64) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openCount++
	if d.failNext {
		d.failNext = false
		return nil, errors.New("device open failed")
	}
	h := &fakeHandle{}
	d.last = h
	return h, nil
}

func TestArbiterMutualExclusion(t *testing.T) {
	dev := &fakeDevice{}
	arb := NewArbiter(dev)

	ctx := context.Background()
	lease1, err := arb.Acquire(ctx, 0, 1_000_000)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		lease2, err := arb.Acquire(ctx, 1, 1_000_000)
		require.NoError(t, err)
		close(acquired)
		lease2.Close()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must not succeed while first lease is held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, lease1.Close())

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire should succeed after first lease is released")
	}
}

func TestArbiterReleasesOnOpenFailure(t *testing.T) {
	dev := &fakeDevice{failNext: true}
	arb := NewArbiter(dev)

	_, err := arb.Acquire(context.Background(), 0, 1_000_000)
	assert.Error(t, err)

	lease, err := arb.Acquire(context.Background(), 0, 1_000_000)
	require.NoError(t, err, "arbiter must release exclusivity even when device-open fails")
	require.NoError(t, lease.Close())
}

func TestLeaseCloseClosesDeviceAndIsIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	arb := NewArbiter(dev)

	lease, err := arb.Acquire(context.Background(), 0, 1_000_000)
	require.NoError(t, err)

	h := lease.Handle().(*fakeHandle)
	require.NoError(t, lease.Close())
	require.NoError(t, lease.Close())

	assert.EqualValues(t, 1, atomic.LoadInt32(&h.closed), "device must be closed exactly once")
}

func TestArbiterAcquireRespectsContext(t *testing.T) {
	dev := &fakeDevice{}
	arb := NewArbiter(dev)

	lease, err := arb.Acquire(context.Background(), 0, 1_000_000)
	require.NoError(t, err)
	defer lease.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = arb.Acquire(ctx, 1, 1_000_000)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
