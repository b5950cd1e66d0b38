// Package processor implements the strict-priority ingestion pipeline:
// deserialize, persist, evaluate alert rules.
package processor

import (
	"context"
	"time"

	"github.com/fieldwatch/sensor-gateway/internal/alerting"
	"github.com/fieldwatch/sensor-gateway/internal/metrics"
	"github.com/fieldwatch/sensor-gateway/internal/repository"
	"github.com/fieldwatch/sensor-gateway/internal/wire"
	"github.com/fieldwatch/sensor-gateway/pkg/log"
)

// idleSleep is how long the processor sleeps when both queues are
// empty, to avoid a tight busy loop.
const idleSleep = 100 * time.Millisecond

// Processor drains HighPrio to empty before ever touching LowPrio, on
// every iteration, per the gateway's fixed priority policy.
type Processor struct {
	HighPrio <-chan []byte
	LowPrio  <-chan []byte
	Alerts   chan<- string

	Fatigue     *repository.FatigueRepository
	Environment *repository.EnvironmentRepository
	Evaluator   *alerting.Evaluator

	Now func() time.Time
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run processes until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		drained := p.drainHigh()
		drained = p.drainLow() || drained

		if !drained {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleSleep):
			}
		}
	}
}

// drainHigh removes every currently-queued high-priority packet before
// returning, so a low-priority item is never touched while a high one
// is pending.
func (p *Processor) drainHigh() bool {
	did := false
	for {
		select {
		case pkt := <-p.HighPrio:
			p.handlePrimary(pkt)
			did = true
		default:
			return did
		}
	}
}

// drainLow removes queued low-priority packets until the queue is empty
// or a high-priority packet is pending; in the latter case it returns
// true so Run services the high queue before the next low item.
func (p *Processor) drainLow() bool {
	did := false
	for {
		if len(p.HighPrio) > 0 {
			return true
		}
		select {
		case pkt := <-p.LowPrio:
			p.handleScout(pkt)
			did = true
		default:
			return did
		}
	}
}

func (p *Processor) handlePrimary(payload []byte) {
	pkt, err := wire.DecodePrimary(payload)
	if err != nil {
		log.Errorf("processor: malformed primary packet: %v", err)
		return
	}

	rec := repository.FatigueRecord{
		Timestamp:  repository.FormatTimestamp(p.now()),
		NodeID:     int64(pkt.NodeID),
		Bin1Cycles: int64(pkt.Bin1),
		Bin2Cycles: int64(pkt.Bin2),
		Bin3Cycles: int64(pkt.Bin3),
	}

	if _, err := p.Fatigue.Insert(rec); err != nil {
		log.Errorf("processor: failed to persist fatigue row for node %d: %v", pkt.NodeID, err)
		return
	}

	if p.Evaluator == nil {
		return
	}

	fields := map[string]float64{
		"bin_1_cycles": float64(pkt.Bin1),
		"bin_2_cycles": float64(pkt.Bin2),
		"bin_3_cycles": float64(pkt.Bin3),
	}
	for _, msg := range p.Evaluator.Evaluate(pkt.NodeID, fields) {
		select {
		case p.Alerts <- msg:
			metrics.QueueDepth.WithLabelValues("alerts").Set(float64(len(p.Alerts)))
		default:
			log.Warnf("processor: alert queue full, dropping alert for node %d", pkt.NodeID)
			metrics.PacketsDropped.WithLabelValues("alerts").Inc()
		}
	}
}

func (p *Processor) handleScout(payload []byte) {
	pkt, err := wire.DecodeScout(payload)
	if err != nil {
		log.Warnf("processor: malformed scout packet: %v", err)
		return
	}

	rec := repository.EnvironmentRecord{
		ReceivedAt:   repository.FormatTimestamp(p.now()),
		NodeID:       int64(pkt.NodeID),
		TemperatureC: pkt.TemperatureC,
		HumidityRH:   pkt.HumidityRH,
	}

	if _, err := p.Environment.Insert(rec); err != nil {
		log.Errorf("processor: failed to persist environment row for node %d: %v", pkt.NodeID, err)
	}
}
