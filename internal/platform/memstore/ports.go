package memstore

import (
	"context"
	"errors"
	"slices"

	"github.com/sdsinventory/backend/internal/fixedcosts"
	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/procurement"
	"github.com/sdsinventory/backend/internal/production"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/sales"
	"github.com/sdsinventory/backend/internal/sales/quotations"
	"github.com/sdsinventory/backend/internal/shared"
)

// Masterdata adapts the store to masterdata.RepositoryPort.
type Masterdata struct{ *Tx }

func (s *Store) Masterdata() Masterdata { return Masterdata{s.View()} }

func (r Masterdata) WithTx(ctx context.Context, fn func(context.Context, masterdata.TxRepository) error) error {
	return r.s.Run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

// Inventory adapts the store to inventory.RepositoryPort.
type Inventory struct{ *Tx }

func (s *Store) Inventory() Inventory { return Inventory{s.View()} }

func (r Inventory) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.s.Run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

// Procurement adapts the store to procurement.RepositoryPort.
type Procurement struct{ *Tx }

func (s *Store) Procurement() Procurement { return Procurement{s.View()} }

func (r Procurement) WithTx(ctx context.Context, fn func(context.Context, procurement.TxRepository) error) error {
	return r.s.Run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

// Recipes adapts the store to recipes.RepositoryPort.
type Recipes struct{ *Tx }

func (s *Store) Recipes() Recipes { return Recipes{s.View()} }

func (r Recipes) WithTx(ctx context.Context, fn func(context.Context, recipes.TxRepository) error) error {
	return r.s.Run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

// FixedCosts adapts the store to fixedcosts.RepositoryPort.
type FixedCosts struct{ *Tx }

func (s *Store) FixedCosts() FixedCosts { return FixedCosts{s.View()} }

func (r FixedCosts) WithTx(ctx context.Context, fn func(context.Context, fixedcosts.TxRepository) error) error {
	return r.s.Run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

// Production adapts the store to production.RepositoryPort.
type Production struct{ *Tx }

func (s *Store) Production() Production { return Production{s.View()} }

func (r Production) WithTx(ctx context.Context, fn func(context.Context, production.TxRepository) error) error {
	return r.s.Run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

// Sales adapts the store to sales.RepositoryPort.
type Sales struct{ *Tx }

func (s *Store) Sales() Sales { return Sales{s.View()} }

func (r Sales) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	return r.s.Run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

// Quotes adapts the store to quotations.RepositoryPort.
type Quotes struct{ *Tx }

func (s *Store) Quotes() Quotes { return Quotes{s.View()} }

func (r Quotes) WithTx(ctx context.Context, fn func(context.Context, quotations.TxRepository) error) error {
	return r.s.Run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

// CheckAndInsert implements shared.IdempotencyPort.
func (s *Store) CheckAndInsert(ctx context.Context, key, module string) error {
	if key == "" || module == "" {
		return errors.New("idempotency key and module required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := module + ":" + key
	if _, ok := s.data.idempotency[k]; ok {
		return shared.ErrIdempotencyConflict
	}
	s.data.idempotency[k] = module
	return nil
}

// Delete implements shared.IdempotencyPort.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.idempotency, key)
	return nil
}

// Record implements shared.AuditPort.
func (s *Store) Record(ctx context.Context, log shared.AuditLog) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.audit = append(s.data.audit, log)
	return nil
}

// AuditLogs returns the recorded audit entries in order.
func (s *Store) AuditLogs() []shared.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.audit)
}
