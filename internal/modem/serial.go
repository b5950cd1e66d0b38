package modem

import (
	"fmt"
	"time"

	"github.com/daedaluz/goserial"
)

// OpenSerial opens a termios-backed serial port at the given device
// path and baud rate and wraps it as a modem Port.
func OpenSerial(device string, baud int) (Port, error) {
	opts := serial.NewOptions()
	opts.SetReadTimeout(time.Second)

	port, err := serial.Open(device, opts)
	if err != nil {
		return nil, fmt.Errorf("modem: opening serial port %s: %w", device, err)
	}

	if err := port.SetAttr2(baud, 8, 'N', 1); err != nil {
		port.Close()
		return nil, fmt.Errorf("modem: configuring serial port %s: %w", device, err)
	}

	return NewBufferedPort(port), nil
}
