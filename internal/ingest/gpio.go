package ingest

import (
	"fmt"

	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"github.com/warthog618/go-gpiocdev"
)

// WatchInterrupt requests line as an input with both-edge detection on
// chip (for example "gpiochip0") and calls latch.Set on every edge,
// for the lifetime of the returned closer. This is how a radio's
// hardware interrupt pin wakes its ingestor.
func WatchInterrupt(chip string, line int, latch *Latch) (func() error, error) {
	l, err := gpiocdev.RequestLine(chip, line,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			latch.Set()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ingest: requesting interrupt line %s:%d: %w", chip, line, err)
	}
	log.Infof("ingest: watching interrupt on %s line %d", chip, line)
	return l.Close, nil
}
