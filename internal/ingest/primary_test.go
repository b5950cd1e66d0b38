package ingest

import (
	"context"
	"testing"

	"github.com/fieldwatch/sensor-gateway/internal/bus"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct{}

func (fakeHandle) Transfer(write, read []byte) error { return nil }
func (fakeHandle) Close() error                      { return nil }

type fakeDevice struct{}

func (fakeDevice) Open(chipSelect int, clockHz int64) (bus.Handle, error) {
	return fakeHandle{}, nil
}

type fakePrimaryRadio struct {
	dataReady  bool
	rearmCalls int
}

func (r *fakePrimaryRadio) Setup(h bus.Handle) error          { return nil }
func (r *fakePrimaryRadio) DataReady(h bus.Handle) (bool, error) { return r.dataReady, nil }
func (r *fakePrimaryRadio) Read(h bus.Handle) ([]byte, error) {
	return []byte{0x01, 0x02, 0x03}, nil
}
func (r *fakePrimaryRadio) Rearm(h bus.Handle) error {
	r.rearmCalls++
	return nil
}

func TestPrimaryIngestorRearmsEvenWhenNoPacketWasWaiting(t *testing.T) {
	radio := &fakePrimaryRadio{dataReady: false}
	p := &PrimaryIngestor{
		Arbiter: bus.NewArbiter(fakeDevice{}),
		Radio:   radio,
		Out:     make(chan []byte, 1),
	}

	p.service(context.Background())

	require.Equal(t, 1, radio.rearmCalls, "rearm must run even when the interrupt carried no packet")
}

func TestPrimaryIngestorRearmsAfterDeliveringPacket(t *testing.T) {
	radio := &fakePrimaryRadio{dataReady: true}
	out := make(chan []byte, 1)
	p := &PrimaryIngestor{
		Arbiter: bus.NewArbiter(fakeDevice{}),
		Radio:   radio,
		Out:     out,
	}

	p.service(context.Background())

	require.Equal(t, 1, radio.rearmCalls)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, <-out)
}
