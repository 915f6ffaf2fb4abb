package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/internal/shared"
)

func TestRunRollsBackOnError(t *testing.T) {
	s := New()
	kg := s.SeedUnit("kg", "Kilogramo")
	sup := s.SeedSupply("Harina", kg, 10, 2)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Run(ctx, func(tx *Tx) error {
		if _, err := tx.LockSupply(ctx, sup.ID); err != nil {
			return err
		}
		require.NoError(t, tx.UpdateSupplyState(ctx, sup.ID, 3, 9))
		require.NoError(t, tx.SetSupplyActive(ctx, sup.ID, false))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.View().GetSupply(ctx, sup.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, got.StockOnHand)
	require.Equal(t, 2.0, got.AvgUnitCost)
	require.True(t, got.Active)
	require.Equal(t, "kg", got.UnitCode)
}

func TestLockWaitTimesOutWithBusy(t *testing.T) {
	s := New()
	s.SetLockWait(20 * time.Millisecond)
	kg := s.SeedUnit("kg", "Kilogramo")
	sup := s.SeedSupply("Harina", kg, 10, 2)
	ctx := context.Background()

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx, func(tx *Tx) error {
			_, err := tx.LockSupply(ctx, sup.ID)
			close(held)
			<-done
			return err
		})
	}()
	<-held
	err := s.Run(ctx, func(tx *Tx) error {
		_, err := tx.LockSupply(ctx, sup.ID)
		return err
	})
	close(done)
	require.ErrorIs(t, err, shared.ErrBusy)
}

func TestLockIsReentrantAndReleased(t *testing.T) {
	s := New()
	kg := s.SeedUnit("kg", "Kilogramo")
	sup := s.SeedSupply("Harina", kg, 10, 2)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx, func(tx *Tx) error {
		if _, err := tx.LockSupply(ctx, sup.ID); err != nil {
			return err
		}
		_, err := tx.LockSupply(ctx, sup.ID)
		return err
	}))
	require.NoError(t, s.Run(ctx, func(tx *Tx) error {
		_, err := tx.LockSupply(ctx, sup.ID)
		return err
	}))
}

func TestIdempotencyConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CheckAndInsert(ctx, "k1", "sales.sale"))
	require.ErrorIs(t, s.CheckAndInsert(ctx, "k1", "sales.sale"), shared.ErrIdempotencyConflict)
	require.NoError(t, s.CheckAndInsert(ctx, "k1", "procurement.purchase"))
	require.NoError(t, s.Delete(ctx, "sales.sale:k1"))
	require.NoError(t, s.CheckAndInsert(ctx, "k1", "sales.sale"))
}
