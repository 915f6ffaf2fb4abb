package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sdsinventory/backend/internal/inventory"
	jobmetrics "github.com/sdsinventory/backend/internal/jobs"
)

// DefaultIdempotencyRetention is how long processed keys are kept.
const DefaultIdempotencyRetention = 72 * time.Hour

// LedgerChecker replays the ledger of every supply.
type LedgerChecker interface {
	ReplayAll(ctx context.Context) ([]inventory.Discrepancy, error)
}

// LowStockReporter lists supplies at or below their minimum.
type LowStockReporter interface {
	LowStock(ctx context.Context) ([]inventory.LowStockAlert, error)
}

// KeyCleaner purges expired idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// InventoryChecks runs the scheduled consistency checks over the ledger.
type InventoryChecks struct {
	Ledger   LedgerChecker
	LowStock LowStockReporter
	Keys     KeyCleaner
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// HandleLedgerReplay compares every supply's running stock and average cost
// with the fold of its movements. Drift is logged, never corrected.
func (j *InventoryChecks) HandleLedgerReplay(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger replay: handler not configured")
	}
	payload, err := decodeScheduled(t)
	if err != nil {
		return err
	}
	tracker := j.Metrics.Track(TaskLedgerReplay)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.Time("scheduled_for", payload.ScheduledFor))
	start := time.Now()
	drift, err := j.Ledger.ReplayAll(ctx)
	if err != nil {
		logger.Error("ledger replay failed", slog.Any("error", err))
		return fmt.Errorf("ledger replay: %w", err)
	}
	for _, d := range drift {
		logger.Warn("ledger drift detected",
			slog.String("supply_id", d.SupplyID.String()),
			slog.String("name", d.Name),
			slog.Float64("recorded_stock", d.RecordedStock),
			slog.Float64("ledger_stock", d.LedgerStock),
			slog.Float64("recorded_avg", d.RecordedAvg),
			slog.Float64("ledger_avg", d.LedgerAvg),
			slog.Int("movements", d.Movements),
		)
	}
	j.Metrics.SetFindings("ledger_drift", len(drift))
	logger.Info("completed ledger replay",
		slog.Int("discrepancies", len(drift)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// HandleLowStockScan logs every active supply at or below its minimum.
func (j *InventoryChecks) HandleLowStockScan(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.LowStock == nil {
		return errors.New("low stock scan: handler not configured")
	}
	if _, err := decodeScheduled(t); err != nil {
		return err
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	alerts, err := j.LowStock.LowStock(ctx)
	if err != nil {
		j.logger().Error("low stock scan failed", slog.Any("error", err))
		return fmt.Errorf("low stock scan: %w", err)
	}
	for _, a := range alerts {
		j.logger().Warn("supply below minimum",
			slog.String("supply_id", a.SupplyID.String()),
			slog.String("name", a.Name),
			slog.Float64("stock_on_hand", a.StockOnHand),
			slog.Float64("stock_min", a.StockMin),
			slog.Float64("shortfall", a.Shortfall),
		)
	}
	j.Metrics.SetFindings("low_stock", len(alerts))
	return nil
}

// HandleIdempotencyCleanup drops processed keys older than the retention.
func (j *InventoryChecks) HandleIdempotencyCleanup(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload CleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Retention <= 0 {
		payload.Retention = DefaultIdempotencyRetention
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()
	return j.Keys.Cleanup(ctx, payload.Retention)
}

func decodeScheduled(t *asynq.Task) (ScheduledPayload, error) {
	var payload ScheduledPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}

func (j *InventoryChecks) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
