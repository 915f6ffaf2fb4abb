package quantity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/internal/shared"
)

type stubLoader struct {
	codes []string
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (l *stubLoader) PieceUnitCodes(ctx context.Context) ([]string, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	return l.codes, l.err
}

func TestApplyWasteContinuous(t *testing.T) {
	p := NewPolicy(nil)
	got, err := p.ApplyWaste(context.Background(), 100, 10, "kg", "kilogram")
	require.NoError(t, err)
	require.InDelta(t, 110.0, got, 1e-9)
}

func TestApplyWastePiece(t *testing.T) {
	p := NewPolicy(nil)
	got, err := p.ApplyWaste(context.Background(), 100, 20, "unidad", "unidad")
	require.NoError(t, err)
	require.Equal(t, 125.0, got)

	got, err = p.ApplyWaste(context.Background(), 3, 10, "x", " Pieces ")
	require.NoError(t, err)
	require.Equal(t, 4.0, got)
}

func TestApplyWasteBounds(t *testing.T) {
	p := NewPolicy(nil)
	ctx := context.Background()

	got, err := p.ApplyWaste(ctx, 7.5, 0, "pz", "pieza")
	require.NoError(t, err)
	require.Equal(t, 7.5, got)

	_, err = p.ApplyWaste(ctx, 1, -1, "kg", "kilogram")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = p.ApplyWaste(ctx, 1, 100, "pz", "pieza")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	got, err = p.ApplyWaste(ctx, 1, 150, "m", "metro")
	require.NoError(t, err)
	require.InDelta(t, 2.5, got, 1e-9)
}

func TestPieceUnitsOverrideAndTTL(t *testing.T) {
	loader := &stubLoader{codes: []string{" ROLLO ", "hoja"}}
	cache := NewPieceUnits(loader, time.Minute, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }
	ctx := context.Background()

	require.True(t, cache.IsPiece(ctx, "rollo", ""))
	require.False(t, cache.IsPiece(ctx, "unidad", "unidad"))
	require.EqualValues(t, 1, loader.calls.Load())

	clock = clock.Add(30 * time.Second)
	require.True(t, cache.IsPiece(ctx, "", "Hoja"))
	require.EqualValues(t, 1, loader.calls.Load())

	loader.codes = []string{"unidad"}
	clock = clock.Add(31 * time.Second)
	require.True(t, cache.IsPiece(ctx, "unidad", ""))
	require.False(t, cache.IsPiece(ctx, "rollo", ""))
	require.EqualValues(t, 2, loader.calls.Load())
}

func TestPieceUnitsFallback(t *testing.T) {
	ctx := context.Background()

	failing := NewPieceUnits(&stubLoader{err: errors.New("connection refused")}, time.Minute, nil)
	require.True(t, failing.IsPiece(ctx, "pcs", ""))

	empty := NewPieceUnits(&stubLoader{}, time.Minute, nil)
	require.True(t, empty.IsPiece(ctx, "", "unidad/pieza"))
	require.False(t, empty.IsPiece(ctx, "kg", "kilogramo"))
}

func TestPieceUnitsSingleRefreshInFlight(t *testing.T) {
	loader := &stubLoader{codes: []string{"pz"}, delay: 50 * time.Millisecond}
	cache := NewPieceUnits(loader, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.True(t, cache.IsPiece(context.Background(), "pz", ""))
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, loader.calls.Load())

	cache.Invalidate()
	require.True(t, cache.IsPiece(context.Background(), "pz", ""))
	require.EqualValues(t, 2, loader.calls.Load())
}
