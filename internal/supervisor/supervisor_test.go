package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunReturnsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Supervisor{Components: []Component{
		{Name: "a", Run: func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }},
		{Name: "b", Run: func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }},
	}}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return after context cancellation")
	}
}

func TestRunShutsDownAllComponentsWhenOneFailsAndAlerts(t *testing.T) {
	stopped := make(chan struct{})
	alerts := make(chan string, 1)

	s := &Supervisor{
		Alerts: alerts,
		Components: []Component{
			{Name: "flaky", Run: func(ctx context.Context) error {
				return errors.New("radio not responding")
			}},
			{Name: "steady", Run: func(ctx context.Context) error {
				<-ctx.Done()
				close(stopped)
				return ctx.Err()
			}},
		},
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("steady component was never cancelled after flaky component failed")
	}

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return after a component failure")
	}

	select {
	case msg := <-alerts:
		require.Contains(t, msg, "flaky")
	default:
		t.Fatal("no watchdog alert was queued")
	}
}
