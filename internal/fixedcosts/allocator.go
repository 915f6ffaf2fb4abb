package fixedcosts

import (
	"context"

	"github.com/sdsinventory/backend/internal/shared"
)

// ActivePeriodSummary resolves the active period's cost per order. A zero
// Summary with a nil PeriodID means no overhead applies.
func ActivePeriodSummary(ctx context.Context, r Reader) (Summary, error) {
	period, ok, err := r.ActivePeriod(ctx)
	if err != nil {
		return Summary{}, err
	}
	if !ok {
		return Summary{Currency: shared.DefaultCurrency}, nil
	}
	return summarize(ctx, r, period)
}

// Allocate splits total across lines in proportion to their materials cost, or
// evenly when the lines carry no materials cost.
func Allocate(total float64, lineMaterials []float64) []float64 {
	if len(lineMaterials) == 0 {
		return nil
	}
	out := make([]float64, len(lineMaterials))
	var sum float64
	for _, m := range lineMaterials {
		sum += m
	}
	for i, m := range lineMaterials {
		if sum <= 0 {
			out[i] = total / float64(len(lineMaterials))
			continue
		}
		out[i] = total * (m / sum)
	}
	return out
}

func summarize(ctx context.Context, r Reader, period Period) (Summary, error) {
	total, err := r.SumFixedCostItems(ctx, period.ID)
	if err != nil {
		return Summary{}, err
	}
	var perOrder float64
	if period.EstimatedOrders > 0 {
		perOrder = total / float64(period.EstimatedOrders)
	}
	id := period.ID
	return Summary{
		PeriodID:        &id,
		Year:            period.Year,
		Month:           period.Month,
		EstimatedOrders: period.EstimatedOrders,
		Currency:        period.Currency,
		Active:          period.Active,
		TotalFixedCosts: shared.Round2(total),
		CostPerOrder:    shared.Round2(perOrder),
	}, nil
}
