package masterdata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/platform/memstore"
	"github.com/sdsinventory/backend/internal/quantity"
	"github.com/sdsinventory/backend/internal/shared"
)

func TestCreateProductDefaultsAndValidation(t *testing.T) {
	store := memstore.New()
	svc := masterdata.NewService(store.Masterdata(), nil)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, masterdata.ProductInput{Name: " Banner ", Type: masterdata.ProductVariable, UnitSale: "m2"})
	require.NoError(t, err)
	require.Equal(t, "Banner", p.Name)
	require.Equal(t, masterdata.DefaultMargin, p.MarginTarget)
	require.True(t, p.Active)

	bad := []masterdata.ProductInput{
		{Type: masterdata.ProductFixed},
		{Name: "x", Type: "other"},
		{Name: "x", Type: masterdata.ProductFixed, MarginTarget: func() *float64 { v := 1.0; return &v }()},
	}
	for _, in := range bad {
		_, err := svc.CreateProduct(ctx, in)
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	}

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	list, err := svc.ListProducts(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestUnitsSortedByCode(t *testing.T) {
	store := memstore.New()
	svc := masterdata.NewService(store.Masterdata(), nil)
	ctx := context.Background()

	_, err := svc.CreateUnit(ctx, masterdata.UnitInput{Code: "m2", Name: "Metro cuadrado"})
	require.NoError(t, err)
	_, err = svc.CreateUnit(ctx, masterdata.UnitInput{Code: "kg", Name: "Kilogramo"})
	require.NoError(t, err)
	_, err = svc.CreateUnit(ctx, masterdata.UnitInput{Code: "kg"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	units, err := svc.ListUnits(ctx)
	require.NoError(t, err)
	require.Len(t, units, 2)
	require.Equal(t, "kg", units[0].Code)
}

func TestPieceUnitOverrideInvalidatesCache(t *testing.T) {
	store := memstore.New()
	pieces := quantity.NewPieceUnits(store.View(), 0, nil)
	svc := masterdata.NewService(store.Masterdata(), pieces)
	ctx := context.Background()

	require.True(t, pieces.IsPiece(ctx, "pcs", ""))
	require.False(t, pieces.IsPiece(ctx, "pliego", ""))

	require.NoError(t, svc.AddPieceUnitCode(ctx, " Pliego "))
	require.NoError(t, svc.AddPieceUnitCode(ctx, "pliego"))
	codes, err := svc.ListPieceUnitCodes(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"pliego"}, codes)

	require.True(t, pieces.IsPiece(ctx, "pliego", ""))
	require.False(t, pieces.IsPiece(ctx, "pcs", ""), "persisted overrides replace the defaults")

	require.ErrorIs(t, svc.AddPieceUnitCode(ctx, " "), shared.ErrInvalidInput)
}
