// Package memstore is an in-memory unit-of-work store implementing every
// repository port. Rows are guarded by exclusive per-row locks held until the
// transaction ends, lock waits are bounded and a failed transaction rolls
// back every write it made. It backs service tests.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

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

// DefaultLockWait bounds how long a transaction waits for a row lock.
const DefaultLockWait = 2 * time.Second

type rowLock struct {
	owner *Tx
	done  chan struct{}
}

// Store holds every table in memory.
type Store struct {
	mu       sync.Mutex
	locks    map[string]*rowLock
	lockWait time.Duration
	data     tables
}

type tables struct {
	units         []masterdata.Unit
	pieceCodes    []string
	products      []masterdata.Product
	supplies      []inventory.Supply
	movements     []inventory.Movement
	presentations []procurement.Presentation
	purchases     []procurement.Purchase
	purchaseItems []procurement.PurchaseItem
	recipes       []recipes.Recipe
	recipeItems   []recipes.Item
	variables     []recipes.Variable
	options       []recipes.Option
	rules         []recipes.Rule
	periods       []fixedcosts.Period
	costItems     []fixedcosts.Item
	orders        []production.Order
	sales         []sales.Sale
	saleItems     []sales.Item
	quoteSeq      map[int]int
	quotes        []quotations.Quote
	quoteItems    []quotations.Item
	history       []quotations.StatusChange
	idempotency   map[string]string
	audit         []shared.AuditLog
}

// New returns an empty store.
func New() *Store {
	return &Store{
		locks:    make(map[string]*rowLock),
		lockWait: DefaultLockWait,
		data: tables{
			quoteSeq:    make(map[int]int),
			idempotency: make(map[string]string),
		},
	}
}

// SetLockWait changes the bounded lock wait.
func (s *Store) SetLockWait(d time.Duration) {
	s.mu.Lock()
	s.lockWait = d
	s.mu.Unlock()
}

// Tx is one unit of work. The zero-lock view returned by Store.View serves
// reads outside a transaction.
type Tx struct {
	s    *Store
	keys []string
	undo []func()
}

// View returns a read handle that takes no locks.
func (s *Store) View() *Tx {
	return &Tx{s: s}
}

// Run executes fn in a transaction, rolling back on error or panic.
func (s *Store) Run(ctx context.Context, fn func(*Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &Tx{s: s}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			tx.release()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		tx.rollback()
		tx.release()
		return err
	}
	tx.release()
	return nil
}

// lock takes the exclusive lock on key, waiting at most the store's lock wait.
// Locks are reentrant within a transaction.
func (t *Tx) lock(ctx context.Context, key string) error {
	t.s.mu.Lock()
	wait := t.s.lockWait
	t.s.mu.Unlock()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		t.s.mu.Lock()
		l, held := t.s.locks[key]
		if !held {
			t.s.locks[key] = &rowLock{owner: t, done: make(chan struct{})}
			t.keys = append(t.keys, key)
			t.s.mu.Unlock()
			return nil
		}
		if l.owner == t {
			t.s.mu.Unlock()
			return nil
		}
		done := l.done
		t.s.mu.Unlock()
		select {
		case <-done:
		case <-timer.C:
			return fmt.Errorf("%w: lock wait exceeded on %s", shared.ErrBusy, key)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Tx) release() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, key := range t.keys {
		if l, ok := t.s.locks[key]; ok && l.owner == t {
			delete(t.s.locks, key)
			close(l.done)
		}
	}
	t.keys = nil
}

func (t *Tx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// onRollback registers how to revert a write. Callers hold s.mu.
func (t *Tx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func indexOf[T any](xs []T, match func(T) bool) int {
	for i, x := range xs {
		if match(x) {
			return i
		}
	}
	return -1
}

func remove[T any](xs []T, match func(T) bool) []T {
	out := xs[:0]
	for _, x := range xs {
		if !match(x) {
			out = append(out, x)
		}
	}
	return out
}

func page[T any](xs []T, p shared.Page) []T {
	if p.Offset >= len(xs) {
		return nil
	}
	end := p.Offset + p.Limit
	if p.Limit <= 0 || end > len(xs) {
		end = len(xs)
	}
	return xs[p.Offset:end]
}

func reversed[T any](xs []T) []T {
	out := make([]T, len(xs))
	for i, x := range xs {
		out[len(xs)-1-i] = x
	}
	return out
}
