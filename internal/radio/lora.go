// Package radio drives the two physical radio chips over the shared
// SPI bus: a long-range LoRa transceiver for fatigue telemetry and a
// short-range 2.4GHz transceiver for environmental telemetry. Register
// addresses and sequencing follow the SX127x and nRF24L01+ datasheets,
// the same chips the original Python gateway wires up.
package radio

import (
	"fmt"

	"github.com/fieldwatch/sensor-gateway/internal/bus"
)

// SX127x register map (subset needed for continuous-receive operation).
const (
	regFifo            = 0x00
	regOpMode          = 0x01
	regFrfMsb          = 0x06
	regFrfMid          = 0x07
	regFrfLsb          = 0x08
	regFifoAddrPtr     = 0x0D
	regFifoTxBaseAddr  = 0x0E
	regFifoRxBaseAddr  = 0x0F
	regFifoRxCurrAddr  = 0x10
	regIrqFlags        = 0x12
	regRxNbBytes       = 0x13
	regModemConfig1    = 0x1D
	regModemConfig2    = 0x1E
	regModemConfig3    = 0x26
	regDioMapping1     = 0x40
	regVersion         = 0x42

	modeLongRange     = 0x80
	modeSleep         = 0x00
	modeStandby       = 0x01
	modeRxContinuous  = 0x05

	irqRxDoneMask = 0x40
)

// loraFrequencyHz is the fixed carrier frequency used by this
// deployment's LoRa link, matching the original gateway's 433MHz band.
const loraFrequencyHz = 433000000

// LoRaRadio drives an SX127x-class chip as the gateway's
// ingest.PrimaryRadio.
type LoRaRadio struct{}

func writeRegister(h bus.Handle, addr, value byte) error {
	w := []byte{addr | 0x80, value}
	r := make([]byte, 2)
	return h.Transfer(w, r)
}

func readRegister(h bus.Handle, addr byte) (byte, error) {
	w := []byte{addr & 0x7F, 0x00}
	r := make([]byte, 2)
	if err := h.Transfer(w, r); err != nil {
		return 0, err
	}
	return r[1], nil
}

func readBurst(h bus.Handle, addr byte, n int) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = addr & 0x7F
	r := make([]byte, n+1)
	if err := h.Transfer(w, r); err != nil {
		return nil, err
	}
	return r[1:], nil
}

// Setup configures the chip for continuous LoRa reception at 433MHz.
func (l *LoRaRadio) Setup(h bus.Handle) error {
	version, err := readRegister(h, regVersion)
	if err != nil {
		return fmt.Errorf("radio.lora: reading version register: %w", err)
	}
	if version == 0x00 || version == 0xFF {
		return fmt.Errorf("radio.lora: no response from chip (version register read %#x)", version)
	}

	if err := writeRegister(h, regOpMode, modeLongRange|modeSleep); err != nil {
		return fmt.Errorf("radio.lora: entering sleep mode: %w", err)
	}

	frf := uint32(float64(loraFrequencyHz) / 61.03515625)
	if err := writeRegister(h, regFrfMsb, byte(frf>>16)); err != nil {
		return err
	}
	if err := writeRegister(h, regFrfMid, byte(frf>>8)); err != nil {
		return err
	}
	if err := writeRegister(h, regFrfLsb, byte(frf)); err != nil {
		return err
	}

	if err := writeRegister(h, regFifoRxBaseAddr, 0x00); err != nil {
		return err
	}
	if err := writeRegister(h, regFifoTxBaseAddr, 0x00); err != nil {
		return err
	}
	if err := writeRegister(h, regModemConfig1, 0x72); err != nil { // BW 125kHz, CR 4/5, explicit header
		return err
	}
	if err := writeRegister(h, regModemConfig2, 0x74); err != nil { // SF7, CRC on
		return err
	}
	if err := writeRegister(h, regModemConfig3, 0x04); err != nil { // LNA gain boost
		return err
	}
	if err := writeRegister(h, regDioMapping1, 0x00); err != nil { // DIO0 = RxDone
		return err
	}

	return l.Rearm(h)
}

// DataReady reports whether the RxDone interrupt flag is set.
func (l *LoRaRadio) DataReady(h bus.Handle) (bool, error) {
	flags, err := readRegister(h, regIrqFlags)
	if err != nil {
		return false, fmt.Errorf("radio.lora: reading irq flags: %w", err)
	}
	return flags&irqRxDoneMask != 0, nil
}

// Read fetches the received packet out of the chip's FIFO.
func (l *LoRaRadio) Read(h bus.Handle) ([]byte, error) {
	currentAddr, err := readRegister(h, regFifoRxCurrAddr)
	if err != nil {
		return nil, fmt.Errorf("radio.lora: reading fifo current address: %w", err)
	}
	if err := writeRegister(h, regFifoAddrPtr, currentAddr); err != nil {
		return nil, fmt.Errorf("radio.lora: setting fifo read pointer: %w", err)
	}
	n, err := readRegister(h, regRxNbBytes)
	if err != nil {
		return nil, fmt.Errorf("radio.lora: reading payload length: %w", err)
	}
	payload, err := readBurst(h, regFifo, int(n))
	if err != nil {
		return nil, fmt.Errorf("radio.lora: reading fifo payload: %w", err)
	}
	return payload, nil
}

// Rearm clears the interrupt flags and returns the chip to continuous
// receive mode, ready for the next packet.
func (l *LoRaRadio) Rearm(h bus.Handle) error {
	if err := writeRegister(h, regIrqFlags, 0xFF); err != nil {
		return fmt.Errorf("radio.lora: clearing irq flags: %w", err)
	}
	if err := writeRegister(h, regOpMode, modeLongRange|modeRxContinuous); err != nil {
		return fmt.Errorf("radio.lora: entering continuous receive mode: %w", err)
	}
	return nil
}
