package inventory

import "math"

// replayTolerance is the accepted gap between running and replayed state.
const replayTolerance = 1e-6

// Replay folds movements in ledger order into stock and average cost: purchase
// INs reweight the average, other INs restore stock at the current average and
// OUTs remove stock.
func Replay(movements []Movement) (stock, avg float64) {
	for _, m := range movements {
		switch {
		case m.Type == MovementIn && m.RefType == RefPurchase:
			stock, avg = WeightedAverage(stock, avg, m.QtyBase, m.UnitCostSnapshot)
		case m.Type == MovementIn:
			stock += m.QtyBase
		case m.Type == MovementOut:
			stock = clampStock(stock - m.QtyBase)
		}
	}
	return stock, avg
}

// Check compares a supply with the replay of its ledger. ok is false when
// either stock or average cost differ beyond tolerance.
func Check(s Supply, movements []Movement) (Discrepancy, bool) {
	stock, avg := Replay(movements)
	d := Discrepancy{
		SupplyID:      s.ID,
		Name:          s.Name,
		RecordedStock: s.StockOnHand,
		LedgerStock:   stock,
		RecordedAvg:   s.AvgUnitCost,
		LedgerAvg:     avg,
		Movements:     len(movements),
	}
	ok := math.Abs(stock-s.StockOnHand) <= replayTolerance && math.Abs(avg-s.AvgUnitCost) <= replayTolerance
	return d, ok
}
