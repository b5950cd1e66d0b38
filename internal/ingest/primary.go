package ingest

import (
	"context"
	"time"

	"github.com/fieldwatch/sensor-gateway/internal/bus"
	"github.com/fieldwatch/sensor-gateway/internal/metrics"
	"github.com/fieldwatch/sensor-gateway/pkg/log"
)

// PrimaryRadio is the capability trait for the long-range radio chip.
// Every method receives the bus handle for the duration of the call
// only; implementations must not retain it across calls.
type PrimaryRadio interface {
	Setup(h bus.Handle) error
	DataReady(h bus.Handle) (bool, error)
	Read(h bus.Handle) ([]byte, error)
	Rearm(h bus.Handle) error
}

// PrimaryIngestor drives the long-range radio on interrupt, handing
// each received packet to the processing stage via a non-blocking,
// bounded queue.
type PrimaryIngestor struct {
	Arbiter    *bus.Arbiter
	Radio      PrimaryRadio
	Latch      *Latch
	ChipSelect int
	ClockHz    int64
	Out        chan<- []byte

	ready bool
}

// Run services interrupts until ctx is cancelled. It never returns an
// error under normal operation — transient radio failures demote the
// ingestor to an uninitialized state and are retried on the next wake.
func (p *PrimaryIngestor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !p.Latch.Wait(time.Second) {
			continue
		}
		p.service(ctx)
	}
}

func (p *PrimaryIngestor) service(ctx context.Context) {
	lease, err := p.Arbiter.Acquire(ctx, p.ChipSelect, p.ClockHz)
	if err != nil {
		log.Warnf("ingest.primary: bus acquire failed: %v", err)
		return
	}
	defer lease.Close()
	h := lease.Handle()

	if !p.ready {
		if err := p.Radio.Setup(h); err != nil {
			log.Errorf("ingest.primary: setup failed: %v", err)
			return
		}
		p.ready = true
	}

	has, err := p.Radio.DataReady(h)
	if err != nil {
		log.Errorf("ingest.primary: data-ready check failed: %v", err)
		p.ready = false
		return
	}

	if has {
		payload, err := p.Radio.Read(h)
		if err != nil {
			log.Errorf("ingest.primary: read failed: %v", err)
			p.ready = false
			return
		}

		select {
		case p.Out <- payload:
			metrics.QueueDepth.WithLabelValues("high_prio").Set(float64(len(p.Out)))
		default:
			log.Warn("ingest.primary: high-priority queue full, dropping packet")
			metrics.PacketsDropped.WithLabelValues("high_prio").Inc()
		}
	}

	// Re-arm runs on every successful wake regardless of whether this
	// particular interrupt carried a packet, matching the receiver's
	// always-re-arm behavior.
	if err := p.Radio.Rearm(h); err != nil {
		log.Errorf("ingest.primary: rearm failed: %v", err)
		p.ready = false
	}
}
