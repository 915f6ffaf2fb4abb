package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReplay folds every supply's movements and reports drift.
	TaskLedgerReplay = "inventory:ledger_replay"
	// TaskLowStockScan reports active supplies at or below their minimum.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "platform:idempotency_cleanup"
)

// ScheduledPayload carries scheduling metadata shared by the inventory checks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// CleanupPayload configures idempotency key retention.
type CleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewLedgerReplayTask constructs an Asynq task for the ledger replay check.
func NewLedgerReplayTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskLedgerReplay, at)
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskLowStockScan, at)
}

// NewIdempotencyCleanupTask constructs an Asynq task purging keys older than retention.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

func newScheduledTask(typ string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(QueueDefault)), nil
}
