// Package supervisor starts the gateway's long-running components as
// goroutines and watches for any of them terminating unexpectedly,
// mirroring the process-wide shutdown coordination the teacher's main
// command builds inline around its HTTP server and signal handler.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldwatch/sensor-gateway/internal/metrics"
	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"golang.org/x/sync/errgroup"
)

// livenessPoll is the period of the supervisor's liveness ticker. The
// tick itself does no checking: a component's exit is observed as soon
// as its goroutine returns.
const livenessPoll = 5 * time.Second

// watchdogAlertTemplate is rendered with the failed component's name
// and pushed onto the alert queue so an operator is paged by SMS.
const watchdogAlertTemplate = "FATAL: Gateway software failure. Component '%s' terminated."

// Component is one independently-running piece of the gateway: a
// primary ingestor, a scout ingestor, the processor, or the alert
// delivery loop.
type Component struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor starts every registered Component and triggers shutdown
// of the whole gateway if any of them exits before ctx is cancelled.
type Supervisor struct {
	Components []Component
	Alerts     chan<- string
}

// Run starts every registered Component under an errgroup.Group and
// blocks until ctx is cancelled or a component exits on its own,
// whichever happens first. errgroup.WithContext cancels its derived
// context as soon as any goroutine returns a non-nil error, so every
// other component unwinds on its own ctx.Done() check; Wait then joins
// them all and returns the first error recorded, whether that is the
// triggering component failure or the caller's own cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	g, runCtx := errgroup.WithContext(ctx)

	for _, c := range s.Components {
		c := c
		g.Go(func() error {
			err := c.Run(runCtx)
			if runCtx.Err() != nil {
				return err
			}
			if err == nil {
				err = fmt.Errorf("returned without an error")
			}
			// The component exited on its own, not because we asked it to.
			metrics.ComponentRestarts.WithLabelValues(c.Name).Inc()
			log.Errorf("supervisor: component %q terminated unexpectedly: %v", c.Name, err)
			s.notify(c.Name)
			return fmt.Errorf("supervisor: shutting down after component %q failed: %w", c.Name, err)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(livenessPoll)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return nil
			case <-ticker.C:
				// periodic liveness tick; component exits are observed via g.Go's own errors
			}
		}
	})

	return g.Wait()
}

func (s *Supervisor) notify(component string) {
	if s.Alerts == nil {
		return
	}
	msg := fmt.Sprintf(watchdogAlertTemplate, component)
	select {
	case s.Alerts <- msg:
	default:
		log.Warn("supervisor: alert queue full, dropping watchdog alert")
	}
}
