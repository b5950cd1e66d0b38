package radio

import (
	"fmt"

	"github.com/fieldwatch/sensor-gateway/internal/bus"
)

// nRF24L01+ command and register map (subset needed for single-pipe
// receive operation).
const (
	cmdRRegister  = 0x00
	cmdWRegister  = 0x20
	cmdRRxPayload = 0x61
	cmdFlushRx    = 0xE2

	nrfRegConfig     = 0x00
	nrfRegEnAA       = 0x01
	nrfRegEnRxAddr   = 0x02
	nrfRegSetupAW    = 0x03
	nrfRegRFCh       = 0x05
	nrfRegRFSetup    = 0x06
	nrfRegStatus     = 0x07
	nrfRegRxAddrP0   = 0x0A
	nrfRegRxPwP0     = 0x11
	nrfRegFifoStatus = 0x17

	nrfConfigPwrUp  = 0x02
	nrfConfigPrimRx = 0x01

	statusRxDrMask       = 0x40
	fifoStatusRxEmptyMask = 0x01
)

// nrfPipeAddress is the fixed receive address used on pipe 0, matching
// the original gateway's nRF24 configuration.
var nrfPipeAddress = []byte{0xAC, 0xAC, 0xAC, 0xAC, 0xAC}

// NRF24Radio drives an nRF24L01+-class chip as the gateway's
// ingest.ScoutRadio. payloadSize is the fixed packet size configured
// on the receive pipe.
type NRF24Radio struct {
	PayloadSize byte
}

func nrfWriteRegister(h bus.Handle, addr byte, value ...byte) error {
	w := append([]byte{cmdWRegister | addr}, value...)
	r := make([]byte, len(w))
	return h.Transfer(w, r)
}

func nrfReadRegister(h bus.Handle, addr byte) (byte, error) {
	w := []byte{cmdRRegister | addr, 0x00}
	r := make([]byte, 2)
	if err := h.Transfer(w, r); err != nil {
		return 0, err
	}
	return r[1], nil
}

func (n *NRF24Radio) payloadSize() byte {
	if n.PayloadSize == 0 {
		return 5
	}
	return n.PayloadSize
}

// Setup configures the chip for single-pipe receive on pipe 0.
func (n *NRF24Radio) Setup(h bus.Handle) error {
	if err := nrfWriteRegister(h, nrfRegEnAA, 0x00); err != nil {
		return fmt.Errorf("radio.nrf24: disabling auto-ack: %w", err)
	}
	if err := nrfWriteRegister(h, nrfRegEnRxAddr, 0x01); err != nil { // enable pipe 0
		return fmt.Errorf("radio.nrf24: enabling rx pipe 0: %w", err)
	}
	if err := nrfWriteRegister(h, nrfRegSetupAW, 0x03); err != nil { // 5-byte addresses
		return fmt.Errorf("radio.nrf24: setting address width: %w", err)
	}
	if err := nrfWriteRegister(h, nrfRegRxAddrP0, nrfPipeAddress...); err != nil {
		return fmt.Errorf("radio.nrf24: setting rx address: %w", err)
	}
	if err := nrfWriteRegister(h, nrfRegRxPwP0, n.payloadSize()); err != nil {
		return fmt.Errorf("radio.nrf24: setting payload width: %w", err)
	}
	if err := nrfWriteRegister(h, nrfRegRFSetup, 0x0F); err != nil { // 2Mbps, 0dBm
		return fmt.Errorf("radio.nrf24: configuring rf setup: %w", err)
	}
	if err := nrfWriteRegister(h, nrfRegRFCh, 76); err != nil {
		return fmt.Errorf("radio.nrf24: setting rf channel: %w", err)
	}

	w := []byte{cmdFlushRx}
	if err := h.Transfer(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("radio.nrf24: flushing rx fifo: %w", err)
	}

	return nrfWriteRegister(h, nrfRegConfig, nrfConfigPwrUp|nrfConfigPrimRx)
}

// Available reports whether the RX FIFO currently holds a packet.
func (n *NRF24Radio) Available(h bus.Handle) (bool, error) {
	status, err := nrfReadRegister(h, nrfRegFifoStatus)
	if err != nil {
		return false, fmt.Errorf("radio.nrf24: reading fifo status: %w", err)
	}
	return status&fifoStatusRxEmptyMask == 0, nil
}

// Read pulls one fixed-size payload out of the RX FIFO and clears the
// RX_DR interrupt flag.
func (n *NRF24Radio) Read(h bus.Handle) ([]byte, error) {
	size := n.payloadSize()
	w := make([]byte, size+1)
	w[0] = cmdRRxPayload
	r := make([]byte, size+1)
	if err := h.Transfer(w, r); err != nil {
		return nil, fmt.Errorf("radio.nrf24: reading rx payload: %w", err)
	}

	if err := nrfWriteRegister(h, nrfRegStatus, statusRxDrMask); err != nil {
		return nil, fmt.Errorf("radio.nrf24: clearing rx_dr flag: %w", err)
	}

	return r[1:], nil
}
