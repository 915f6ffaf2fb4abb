package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/procurement"
	"github.com/sdsinventory/backend/internal/shared"
)

// units

func (t *Tx) ListUnits(ctx context.Context) ([]masterdata.Unit, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := slices.Clone(t.s.data.units)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *Tx) GetUnit(ctx context.Context, id uuid.UUID) (masterdata.Unit, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.units, func(u masterdata.Unit) bool { return u.ID == id })
	if i < 0 {
		return masterdata.Unit{}, shared.NotFound("unit", id)
	}
	return t.s.data.units[i], nil
}

func (t *Tx) InsertUnit(ctx context.Context, unit masterdata.Unit) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if indexOf(t.s.data.units, func(u masterdata.Unit) bool { return u.Code == unit.Code }) >= 0 {
		return fmt.Errorf("%w: unit code %q exists", shared.ErrInvalidInput, unit.Code)
	}
	t.s.data.units = append(t.s.data.units, unit)
	t.onRollback(func() {
		t.s.data.units = remove(t.s.data.units, func(u masterdata.Unit) bool { return u.ID == unit.ID })
	})
	return nil
}

func (t *Tx) PieceUnitCodes(ctx context.Context) ([]string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := slices.Clone(t.s.data.pieceCodes)
	slices.Sort(out)
	return out, nil
}

func (t *Tx) InsertPieceUnitCode(ctx context.Context, code string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if slices.Contains(t.s.data.pieceCodes, code) {
		return nil
	}
	t.s.data.pieceCodes = append(t.s.data.pieceCodes, code)
	t.onRollback(func() {
		t.s.data.pieceCodes = remove(t.s.data.pieceCodes, func(c string) bool { return c == code })
	})
	return nil
}

// products

func (t *Tx) GetProduct(ctx context.Context, id uuid.UUID) (masterdata.Product, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.product(id)
}

func (t *Tx) product(id uuid.UUID) (masterdata.Product, error) {
	i := indexOf(t.s.data.products, func(p masterdata.Product) bool { return p.ID == id })
	if i < 0 {
		return masterdata.Product{}, shared.NotFound("product", id)
	}
	return t.s.data.products[i], nil
}

func (t *Tx) ListProducts(ctx context.Context, includeInactive bool) ([]masterdata.Product, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []masterdata.Product
	for _, p := range t.s.data.products {
		if p.Active || includeInactive {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *Tx) InsertProduct(ctx context.Context, product masterdata.Product) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.products = append(t.s.data.products, product)
	t.onRollback(func() {
		t.s.data.products = remove(t.s.data.products, func(p masterdata.Product) bool { return p.ID == product.ID })
	})
	return nil
}

func (t *Tx) UpdateProductMargin(ctx context.Context, id uuid.UUID, margin float64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.products, func(p masterdata.Product) bool { return p.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: product %s", shared.ErrNotFound, id)
	}
	prev := t.s.data.products[i].MarginTarget
	t.s.data.products[i].MarginTarget = margin
	t.onRollback(func() { t.setProductMargin(id, prev) })
	return nil
}

func (t *Tx) setProductMargin(id uuid.UUID, margin float64) {
	if i := indexOf(t.s.data.products, func(p masterdata.Product) bool { return p.ID == id }); i >= 0 {
		t.s.data.products[i].MarginTarget = margin
	}
}

// supplies

func (t *Tx) supply(id uuid.UUID) (inventory.Supply, int, error) {
	i := indexOf(t.s.data.supplies, func(s inventory.Supply) bool { return s.ID == id })
	if i < 0 {
		return inventory.Supply{}, -1, shared.NotFound("supply", id)
	}
	s := t.s.data.supplies[i]
	if u := indexOf(t.s.data.units, func(u masterdata.Unit) bool { return u.ID == s.UnitBaseID }); u >= 0 {
		s.UnitCode = t.s.data.units[u].Code
		s.UnitName = t.s.data.units[u].Name
	}
	return s, i, nil
}

func (t *Tx) GetSupply(ctx context.Context, id uuid.UUID) (inventory.Supply, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	s, _, err := t.supply(id)
	return s, err
}

func (t *Tx) LockSupply(ctx context.Context, id uuid.UUID) (inventory.Supply, error) {
	if err := t.lock(ctx, "supply:"+id.String()); err != nil {
		return inventory.Supply{}, err
	}
	return t.GetSupply(ctx, id)
}

func (t *Tx) ListSupplies(ctx context.Context, includeInactive bool) ([]inventory.Supply, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []inventory.Supply
	for _, row := range t.s.data.supplies {
		if !row.Active && !includeInactive {
			continue
		}
		s, _, _ := t.supply(row.ID)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *Tx) InsertSupply(ctx context.Context, supply inventory.Supply) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if indexOf(t.s.data.units, func(u masterdata.Unit) bool { return u.ID == supply.UnitBaseID }) < 0 {
		return shared.NotFound("unit", supply.UnitBaseID)
	}
	t.s.data.supplies = append(t.s.data.supplies, supply)
	t.onRollback(func() {
		t.s.data.supplies = remove(t.s.data.supplies, func(s inventory.Supply) bool { return s.ID == supply.ID })
	})
	return nil
}

func (t *Tx) UpdateSupplyState(ctx context.Context, id uuid.UUID, stock, avgUnitCost float64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	_, i, err := t.supply(id)
	if err != nil {
		return err
	}
	prevStock, prevAvg := t.s.data.supplies[i].StockOnHand, t.s.data.supplies[i].AvgUnitCost
	t.s.data.supplies[i].StockOnHand = stock
	t.s.data.supplies[i].AvgUnitCost = avgUnitCost
	t.onRollback(func() {
		if _, j, err := t.supply(id); err == nil {
			t.s.data.supplies[j].StockOnHand = prevStock
			t.s.data.supplies[j].AvgUnitCost = prevAvg
		}
	})
	return nil
}

func (t *Tx) SetSupplyActive(ctx context.Context, id uuid.UUID, active bool) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	_, i, err := t.supply(id)
	if err != nil {
		return err
	}
	prev := t.s.data.supplies[i].Active
	t.s.data.supplies[i].Active = active
	t.onRollback(func() {
		if _, j, err := t.supply(id); err == nil {
			t.s.data.supplies[j].Active = prev
		}
	})
	return nil
}

// movements

func (t *Tx) InsertMovement(ctx context.Context, m inventory.Movement) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, _, err := t.supply(m.SupplyID); err != nil {
		return err
	}
	t.s.data.movements = append(t.s.data.movements, m)
	t.onRollback(func() {
		t.s.data.movements = remove(t.s.data.movements, func(x inventory.Movement) bool { return x.ID == m.ID })
	})
	return nil
}

func (t *Tx) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []inventory.Movement
	for _, m := range reversed(t.s.data.movements) {
		if filter.SupplyID == nil || m.SupplyID == *filter.SupplyID {
			out = append(out, m)
		}
	}
	return slices.Clone(page(out, filter.Page)), nil
}

func (t *Tx) ListMovementsByRef(ctx context.Context, refType inventory.RefType, refIDs []uuid.UUID) ([]inventory.Movement, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []inventory.Movement
	for _, m := range t.s.data.movements {
		if m.RefType == refType && slices.Contains(refIDs, m.RefID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *Tx) ListLedger(ctx context.Context, supplyID uuid.UUID) ([]inventory.Movement, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []inventory.Movement
	for _, m := range t.s.data.movements {
		if m.SupplyID == supplyID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *Tx) MovementSummary(ctx context.Context, supplyID uuid.UUID) (inventory.MovementSummary, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	sum := inventory.MovementSummary{SupplyID: supplyID}
	for _, m := range t.s.data.movements {
		if m.SupplyID != supplyID {
			continue
		}
		switch m.Type {
		case inventory.MovementIn:
			sum.TotalIn += m.QtyBase
		case inventory.MovementOut:
			sum.TotalOut += m.QtyBase
		}
	}
	sum.Balance = sum.TotalIn - sum.TotalOut
	return sum, nil
}

func (t *Tx) ListLowStock(ctx context.Context) ([]inventory.LowStockAlert, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []inventory.LowStockAlert
	for _, row := range t.s.data.supplies {
		if !row.Active || row.StockOnHand > row.StockMin {
			continue
		}
		s, _, _ := t.supply(row.ID)
		out = append(out, inventory.LowStockAlert{
			SupplyID:    s.ID,
			Name:        s.Name,
			UnitCode:    s.UnitCode,
			StockOnHand: s.StockOnHand,
			StockMin:    s.StockMin,
			Shortfall:   s.StockMin - s.StockOnHand,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Shortfall != out[j].Shortfall {
			return out[i].Shortfall > out[j].Shortfall
		}
		return strings.Compare(out[i].Name, out[j].Name) < 0
	})
	return out, nil
}

// presentations and purchases

func (t *Tx) GetPresentation(ctx context.Context, id uuid.UUID) (procurement.Presentation, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.presentations, func(p procurement.Presentation) bool { return p.ID == id })
	if i < 0 {
		return procurement.Presentation{}, shared.NotFound("presentation", id)
	}
	return t.s.data.presentations[i], nil
}

func (t *Tx) ListPresentations(ctx context.Context, supplyID *uuid.UUID) ([]procurement.Presentation, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []procurement.Presentation
	for _, p := range t.s.data.presentations {
		if supplyID == nil || p.SupplyID == *supplyID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *Tx) InsertPresentation(ctx context.Context, p procurement.Presentation) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.presentations = append(t.s.data.presentations, p)
	t.onRollback(func() {
		t.s.data.presentations = remove(t.s.data.presentations, func(x procurement.Presentation) bool { return x.ID == p.ID })
	})
	return nil
}

func (t *Tx) GetPurchase(ctx context.Context, id uuid.UUID) (procurement.Purchase, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := indexOf(t.s.data.purchases, func(p procurement.Purchase) bool { return p.ID == id })
	if i < 0 {
		return procurement.Purchase{}, shared.NotFound("purchase", id)
	}
	p := t.s.data.purchases[i]
	p.Items = nil
	for _, it := range t.s.data.purchaseItems {
		if it.PurchaseID == id {
			p.Items = append(p.Items, it)
		}
	}
	return p, nil
}

func (t *Tx) ListPurchases(ctx context.Context, p shared.Page) ([]procurement.Purchase, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := reversed(t.s.data.purchases)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return slices.Clone(page(out, p)), nil
}

func (t *Tx) InsertPurchase(ctx context.Context, p procurement.Purchase) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p.Items = nil
	t.s.data.purchases = append(t.s.data.purchases, p)
	t.onRollback(func() {
		t.s.data.purchases = remove(t.s.data.purchases, func(x procurement.Purchase) bool { return x.ID == p.ID })
	})
	return nil
}

func (t *Tx) InsertPurchaseItem(ctx context.Context, item procurement.PurchaseItem) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.data.purchaseItems = append(t.s.data.purchaseItems, item)
	t.onRollback(func() {
		t.s.data.purchaseItems = remove(t.s.data.purchaseItems, func(x procurement.PurchaseItem) bool { return x.ID == item.ID })
	})
	return nil
}
