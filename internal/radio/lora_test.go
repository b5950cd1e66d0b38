package radio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeLoRaHandle models just enough SX127x register state to exercise
// LoRaRadio's read/rearm cycle.
type fakeLoRaHandle struct {
	registers map[byte]byte
	fifo      []byte
}

func newFakeLoRaHandle() *fakeLoRaHandle {
	return &fakeLoRaHandle{
		registers: map[byte]byte{regVersion: 0x12},
	}
}

func (h *fakeLoRaHandle) Transfer(write, read []byte) error {
	if len(write) == 2 {
		addr := write[0]
		if addr&0x80 != 0 {
			reg := addr &^ 0x80
			if reg == regIrqFlags {
				// write-1-to-clear, matching the real chip's semantics.
				h.registers[reg] &^= write[1]
			} else {
				h.registers[reg] = write[1]
			}
		} else {
			read[1] = h.registers[addr]
		}
		return nil
	}
	// burst FIFO read: write[0] is the address, the rest is padding.
	addr := write[0] & 0x7F
	if addr == regFifo {
		copy(read[1:], h.fifo)
	}
	return nil
}

func (h *fakeLoRaHandle) Close() error { return nil }

func TestLoRaRadioSetupRejectsUnresponsiveChip(t *testing.T) {
	h := newFakeLoRaHandle()
	h.registers[regVersion] = 0x00
	l := &LoRaRadio{}

	err := l.Setup(h)
	require.Error(t, err)
}

func TestLoRaRadioDataReadyAndRead(t *testing.T) {
	h := newFakeLoRaHandle()
	l := &LoRaRadio{}
	require.NoError(t, l.Setup(h))

	ready, err := l.DataReady(h)
	require.NoError(t, err)
	require.False(t, ready)

	h.registers[regIrqFlags] = irqRxDoneMask
	h.registers[regRxNbBytes] = 3
	h.fifo = []byte{0x01, 0x02, 0x03}

	ready, err = l.DataReady(h)
	require.NoError(t, err)
	require.True(t, ready)

	payload, err := l.Read(h)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, payload)

	require.NoError(t, l.Rearm(h))
	require.Equal(t, byte(0x00), h.registers[regIrqFlags], "rearm clears every irq flag")
	require.Equal(t, byte(modeLongRange|modeRxContinuous), h.registers[regOpMode])
}
