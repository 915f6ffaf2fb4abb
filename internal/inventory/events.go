package inventory

// Observer receives committed movements, e.g. for metrics.
type Observer interface {
	ObserveMovement(movementType, refType string, qty float64)
}

// ReportMovements forwards movements to obs once their transaction committed.
func ReportMovements(obs Observer, movements []Movement) {
	if obs == nil {
		return
	}
	for _, m := range movements {
		obs.ObserveMovement(string(m.Type), string(m.RefType), m.QtyBase)
	}
}
