package inventory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/shared"
)

// Ledger mutates supply stock inside one unit of work. Every mutation locks the
// supply row first; locks are held until the enclosing transaction ends.
// A Ledger must not outlive the TxRepository it wraps.
type Ledger struct {
	tx       TxRepository
	now      func() time.Time
	held     map[uuid.UUID]*Supply
	recorded []Movement
}

// NewLedger binds a ledger to a transaction.
func NewLedger(tx TxRepository) *Ledger {
	return &Ledger{tx: tx, now: time.Now, held: make(map[uuid.UUID]*Supply)}
}

// SortedIDs returns ids deduplicated in ascending order, the order in which
// multi-supply transactions acquire their locks.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// LockSupply locks the supply row and returns its current state.
func (l *Ledger) LockSupply(ctx context.Context, id uuid.UUID) (Supply, error) {
	if s, ok := l.held[id]; ok {
		return *s, nil
	}
	s, err := l.tx.LockSupply(ctx, id)
	if err != nil {
		return Supply{}, err
	}
	l.held[id] = &s
	return s, nil
}

// LockSupplies locks every id in ascending order.
func (l *Ledger) LockSupplies(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Supply, error) {
	out := make(map[uuid.UUID]Supply, len(ids))
	for _, id := range SortedIDs(ids) {
		s, err := l.LockSupply(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, nil
}

// EnsureAvailable locks every supply in needs and verifies each can cover its
// required quantity. The first shortfall in lock order is reported.
func (l *Ledger) EnsureAvailable(ctx context.Context, needs map[uuid.UUID]float64) error {
	ids := make([]uuid.UUID, 0, len(needs))
	for id := range needs {
		ids = append(ids, id)
	}
	for _, id := range SortedIDs(ids) {
		s, err := l.LockSupply(ctx, id)
		if err != nil {
			return err
		}
		if needs[id] > s.StockOnHand+stockEpsilon {
			return &shared.InsufficientStockError{SupplyID: id.String(), Required: needs[id], Available: s.StockOnHand}
		}
	}
	return nil
}

// RecordMovement appends a ledger row.
func (l *Ledger) RecordMovement(ctx context.Context, supplyID uuid.UUID, kind MovementType, qty, unitCost float64, refType RefType, refID uuid.UUID) (Movement, error) {
	if qty <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if unitCost < 0 {
		return Movement{}, ErrInvalidUnitCost
	}
	if kind != MovementIn && kind != MovementOut {
		return Movement{}, fmt.Errorf("%w: inventory: movement type %q", shared.ErrInvalidInput, kind)
	}
	m := Movement{
		ID:               uuid.New(),
		SupplyID:         supplyID,
		Type:             kind,
		QtyBase:          qty,
		UnitCostSnapshot: unitCost,
		RefType:          refType,
		RefID:            refID,
		CreatedAt:        l.now().UTC(),
	}
	if err := l.tx.InsertMovement(ctx, m); err != nil {
		return Movement{}, err
	}
	l.recorded = append(l.recorded, m)
	return m, nil
}

// ApplyPurchase adds qtyIn at unitCost and reweights the average cost.
func (l *Ledger) ApplyPurchase(ctx context.Context, supplyID uuid.UUID, qtyIn, unitCost float64) (Supply, error) {
	if qtyIn <= 0 {
		return Supply{}, ErrInvalidQuantity
	}
	if unitCost < 0 {
		return Supply{}, ErrInvalidUnitCost
	}
	s, err := l.LockSupply(ctx, supplyID)
	if err != nil {
		return Supply{}, err
	}
	stock, avg := WeightedAverage(s.StockOnHand, s.AvgUnitCost, qtyIn, unitCost)
	return l.store(ctx, s, stock, avg)
}

// ApplyConsumption removes qtyOut, leaving the average cost untouched.
func (l *Ledger) ApplyConsumption(ctx context.Context, supplyID uuid.UUID, qtyOut float64) (Supply, error) {
	if qtyOut <= 0 {
		return Supply{}, ErrInvalidQuantity
	}
	s, err := l.LockSupply(ctx, supplyID)
	if err != nil {
		return Supply{}, err
	}
	if qtyOut > s.StockOnHand+stockEpsilon {
		return Supply{}, &shared.InsufficientStockError{SupplyID: supplyID.String(), Required: qtyOut, Available: s.StockOnHand}
	}
	return l.store(ctx, s, clampStock(s.StockOnHand-qtyOut), s.AvgUnitCost)
}

// Consume applies a consumption and records the OUT movement at the locked
// average cost.
func (l *Ledger) Consume(ctx context.Context, supplyID uuid.UUID, qty float64, refType RefType, refID uuid.UUID) (Movement, error) {
	s, err := l.ApplyConsumption(ctx, supplyID, qty)
	if err != nil {
		return Movement{}, err
	}
	return l.RecordMovement(ctx, supplyID, MovementOut, qty, s.AvgUnitCost, refType, refID)
}

// ReverseConsumption returns the quantity of an OUT movement to stock and
// records a sale_void IN at the original cost snapshot. The average cost is
// left as is.
func (l *Ledger) ReverseConsumption(ctx context.Context, out Movement) (Movement, error) {
	if out.Type != MovementOut {
		return Movement{}, fmt.Errorf("%w: inventory: only OUT movements can be reversed", shared.ErrInvalidInput)
	}
	if out.QtyBase <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	s, err := l.LockSupply(ctx, out.SupplyID)
	if err != nil {
		return Movement{}, err
	}
	if _, err := l.store(ctx, s, s.StockOnHand+out.QtyBase, s.AvgUnitCost); err != nil {
		return Movement{}, err
	}
	return l.RecordMovement(ctx, out.SupplyID, MovementIn, out.QtyBase, out.UnitCostSnapshot, RefSaleVoid, out.RefID)
}

// Movements returns what this ledger recorded, in order.
func (l *Ledger) Movements() []Movement {
	out := make([]Movement, len(l.recorded))
	copy(out, l.recorded)
	return out
}

func (l *Ledger) store(ctx context.Context, s Supply, stock, avg float64) (Supply, error) {
	if err := l.tx.UpdateSupplyState(ctx, s.ID, stock, avg); err != nil {
		return Supply{}, err
	}
	s.StockOnHand = stock
	s.AvgUnitCost = avg
	l.held[s.ID] = &s
	return s, nil
}

// WeightedAverage folds a purchase into the running stock and average cost.
func WeightedAverage(stock, avg, qtyIn, unitCost float64) (float64, float64) {
	newStock := stock + qtyIn
	if newStock <= 0 {
		return newStock, 0
	}
	return newStock, (stock*avg + qtyIn*unitCost) / newStock
}

func clampStock(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
