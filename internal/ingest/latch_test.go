package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatchWaitTimesOutWithNoSignal(t *testing.T) {
	l := NewLatch()
	assert.False(t, l.Wait(10*time.Millisecond))
}

func TestLatchSetIsIdempotentBetweenConsumptions(t *testing.T) {
	l := NewLatch()
	l.Set()
	l.Set()
	l.Set()

	assert.True(t, l.Wait(10*time.Millisecond))
	assert.False(t, l.Wait(10*time.Millisecond), "only one wake should have been coalesced")
}

func TestLatchSecondSignalDuringProcessingWakesAgain(t *testing.T) {
	l := NewLatch()
	l.Set()
	assert.True(t, l.Wait(10*time.Millisecond))

	l.Set()
	assert.True(t, l.Wait(10*time.Millisecond), "a signal arriving after consumption must wake again")
}
