// Package egress delivers operator alerts over SMS and forwards
// unsent fatigue readings upstream over the modem's HTTP session, in
// a store-and-forward discipline: rows are marked sent only once the
// upstream endpoint has acknowledged them.
package egress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldwatch/sensor-gateway/internal/metrics"
	"github.com/fieldwatch/sensor-gateway/internal/modem"
	"github.com/fieldwatch/sensor-gateway/internal/repository"
	"github.com/fieldwatch/sensor-gateway/pkg/log"
)

// uploadBatchSize is the maximum number of unsent rows forwarded in a
// single upload attempt.
const uploadBatchSize = 50

// alertWaitTimeout bounds how long RunAlerts blocks per iteration
// waiting for the next queued alert, so shutdown is observed promptly.
const alertWaitTimeout = time.Second

// alertRetryDelay is how long RunAlerts waits after a failed delivery
// before taking the next alert off the queue.
const alertRetryDelay = 10 * time.Second

// Egress owns the one modem shared between alert delivery and batched
// cloud uploads.
type Egress struct {
	Modem   *modem.Modem
	Fatigue *repository.FatigueRepository

	Alerts    chan string
	Recipient string

	GatewayID string
	APN       string
	UpstreamURL string
}

// uploadRow is the wire shape of one fatigue reading in an upload batch.
type uploadRow struct {
	GatewayID string `json:"gateway_id"`
	PacketID  int64  `json:"packet_id"`
	NodeID    int64  `json:"node_id"`
	Timestamp string `json:"timestamp"`
	Fatigue   struct {
		Bin1 int64 `json:"bin_1"`
		Bin2 int64 `json:"bin_2"`
		Bin3 int64 `json:"bin_3"`
	} `json:"fatigue_cycles"`
}

// RunAlerts delivers queued alerts by SMS until ctx is cancelled.
// Delivery failures re-queue the alert (when the queue has room) and
// wait alertRetryDelay before retrying; the delay is fixed, not a
// growing backoff.
func (e *Egress) RunAlerts(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var msg string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg = <-e.Alerts:
		case <-time.After(alertWaitTimeout):
			continue
		}

		if err := e.Modem.SendSMS(ctx, e.Recipient, msg); err != nil {
			metrics.AlertsSent.WithLabelValues("failure").Inc()
			log.Errorf("egress: alert delivery failed, re-queueing: %v", err)
			select {
			case e.Alerts <- msg:
			default:
				log.Warn("egress: alert queue full on re-queue, dropping alert")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(alertRetryDelay):
			}
			continue
		}
		metrics.AlertsSent.WithLabelValues("success").Inc()
	}
}

// UploadPending selects up to uploadBatchSize unsent fatigue rows,
// formats them, and drives one modem upload attempt. On success it
// commits sent_to_cloud for exactly that batch; on failure it leaves
// the store untouched so the rows are retried on the next call.
func (e *Egress) UploadPending(ctx context.Context) error {
	rows, err := e.Fatigue.Unsent(uploadBatchSize)
	if err != nil {
		return fmt.Errorf("egress: fetching unsent rows: %w", err)
	}
	if len(rows) == 0 {
		log.Debug("egress: no unsent fatigue rows, skipping upload cycle")
		return nil
	}

	payload, ids, err := e.buildPayload(rows)
	if err != nil {
		return fmt.Errorf("egress: building upload payload: %w", err)
	}

	if err := e.Modem.Upload(ctx, e.APN, e.UpstreamURL, payload); err != nil {
		metrics.UploadAttempts.WithLabelValues("failure").Inc()
		log.Errorf("egress: upload of %d row(s) failed, will retry next cycle: %v", len(ids), err)
		return err
	}

	if err := e.Fatigue.MarkSent(ids); err != nil {
		return fmt.Errorf("egress: marking %d row(s) sent after a successful upload: %w", len(ids), err)
	}

	metrics.UploadAttempts.WithLabelValues("success").Inc()
	log.Infof("egress: delivered %d fatigue row(s) upstream", len(ids))
	return nil
}

func (e *Egress) buildPayload(rows []repository.FatigueRecord) ([]byte, []int64, error) {
	out := make([]uploadRow, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ur := uploadRow{
			GatewayID: e.GatewayID,
			PacketID:  r.LogID,
			NodeID:    r.NodeID,
			Timestamp: r.Timestamp,
		}
		ur.Fatigue.Bin1 = r.Bin1Cycles
		ur.Fatigue.Bin2 = r.Bin2Cycles
		ur.Fatigue.Bin3 = r.Bin3Cycles
		out = append(out, ur)
		ids = append(ids, r.LogID)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, nil, err
	}
	return payload, ids, nil
}
