package radio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeNRFHandle struct {
	registers map[byte]byte
	rxPayload []byte
}

func newFakeNRFHandle() *fakeNRFHandle {
	return &fakeNRFHandle{registers: map[byte]byte{nrfRegFifoStatus: fifoStatusRxEmptyMask}}
}

func (h *fakeNRFHandle) Transfer(write, read []byte) error {
	cmd := write[0] & 0xE0
	switch {
	case write[0] == cmdFlushRx:
		h.rxPayload = nil
		return nil
	case write[0] == cmdRRxPayload:
		copy(read[1:], h.rxPayload)
		return nil
	case cmd == cmdWRegister:
		addr := write[0] &^ cmdWRegister
		if addr == nrfRegStatus {
			h.registers[addr] &^= write[1]
			return nil
		}
		h.registers[addr] = write[1]
		return nil
	case write[0]&0xE0 == cmdRRegister:
		addr := write[0] &^ cmdRRegister
		read[1] = h.registers[addr]
		return nil
	}
	return nil
}

func (h *fakeNRFHandle) Close() error { return nil }

func TestNRF24RadioSetupAndReceive(t *testing.T) {
	h := newFakeNRFHandle()
	n := &NRF24Radio{PayloadSize: 5}

	require.NoError(t, n.Setup(h))

	avail, err := n.Available(h)
	require.NoError(t, err)
	require.False(t, avail)

	h.registers[nrfRegFifoStatus] = 0x00 // rx fifo not empty
	h.rxPayload = []byte{0x2A, 0xF4, 0x01, 0x08, 0x07}

	avail, err = n.Available(h)
	require.NoError(t, err)
	require.True(t, avail)

	payload, err := n.Read(h)
	require.NoError(t, err)
	require.Equal(t, []byte{0x2A, 0xF4, 0x01, 0x08, 0x07}, payload)
}
