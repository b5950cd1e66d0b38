package ingest

import (
	"context"
	"time"

	"github.com/fieldwatch/sensor-gateway/internal/bus"
	"github.com/fieldwatch/sensor-gateway/internal/metrics"
	"github.com/fieldwatch/sensor-gateway/pkg/log"
)

// ScoutRadio is the capability trait for the short-range radio chip. It
// may buffer more than one packet between services, hence Available is
// checked in a loop rather than once per interrupt.
type ScoutRadio interface {
	Setup(h bus.Handle) error
	Available(h bus.Handle) (bool, error)
	Read(h bus.Handle) ([]byte, error)
}

// ScoutIngestor drives the short-range radio on interrupt, draining
// every packet currently buffered in hardware before releasing the bus.
type ScoutIngestor struct {
	Arbiter    *bus.Arbiter
	Radio      ScoutRadio
	Latch      *Latch
	ChipSelect int
	ClockHz    int64
	Out        chan<- []byte

	ready bool
}

// Run services interrupts until ctx is cancelled.
func (s *ScoutIngestor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !s.Latch.Wait(time.Second) {
			continue
		}
		s.service(ctx)
	}
}

func (s *ScoutIngestor) service(ctx context.Context) {
	lease, err := s.Arbiter.Acquire(ctx, s.ChipSelect, s.ClockHz)
	if err != nil {
		log.Warnf("ingest.scout: bus acquire failed: %v", err)
		return
	}
	defer lease.Close()
	h := lease.Handle()

	if !s.ready {
		if err := s.Radio.Setup(h); err != nil {
			log.Errorf("ingest.scout: setup failed: %v", err)
			return
		}
		s.ready = true
	}

	for {
		has, err := s.Radio.Available(h)
		if err != nil {
			log.Errorf("ingest.scout: availability check failed: %v", err)
			s.ready = false
			return
		}
		if !has {
			return
		}

		payload, err := s.Radio.Read(h)
		if err != nil {
			log.Errorf("ingest.scout: read failed: %v", err)
			s.ready = false
			return
		}

		select {
		case s.Out <- payload:
			metrics.QueueDepth.WithLabelValues("low_prio").Set(float64(len(s.Out)))
		default:
			log.Warn("ingest.scout: low-priority queue full, dropping packet")
			metrics.PacketsDropped.WithLabelValues("low_prio").Inc()
		}
	}
}
