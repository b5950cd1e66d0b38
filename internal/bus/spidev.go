package bus

import (
	"fmt"

	"github.com/daedaluz/goserial/spi"
)

// SpidevDevice opens Linux spidev character devices named
// "<BasePath>.<chipSelect>" (for example "/dev/spidev0.0",
// "/dev/spidev0.1"), the standard kernel naming for multiple chip
// selects sharing one SPI controller.
type SpidevDevice struct {
	BasePath string
	Mode     spi.Mode
	Bits     uint8
}

// Open implements Device.
func (d *SpidevDevice) Open(chipSelect int, clockHz int64) (Handle, error) {
	path := fmt.Sprintf("%s.%d", d.BasePath, chipSelect)
	bits := d.Bits
	if bits == 0 {
		bits = 8
	}

	dev, err := spi.Open(path, &spi.Config{
		Mode:  d.Mode,
		Bits:  bits,
		Speed: uint32(clockHz),
	})
	if err != nil {
		return nil, fmt.Errorf("bus: opening %s: %w", path, err)
	}
	return &spidevHandle{dev: dev}, nil
}

type spidevHandle struct {
	dev *spi.Device
}

func (h *spidevHandle) Transfer(write, read []byte) error {
	got, err := h.dev.Tx(write)
	if err != nil {
		return err
	}
	copy(read, got)
	return nil
}

func (h *spidevHandle) Close() error {
	return h.dev.Close()
}
