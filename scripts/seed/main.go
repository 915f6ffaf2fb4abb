package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sdsinventory/backend/internal/app"
	"github.com/sdsinventory/backend/internal/fixedcosts"
	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/platform/db"
	"github.com/sdsinventory/backend/internal/platform/migrations"
	"github.com/sdsinventory/backend/internal/procurement"
	"github.com/sdsinventory/backend/internal/recipes"
)

// Seeds a print shop catalogue through the services so every row passes the
// same validation as API traffic. Running it against a seeded database is a no-op.
func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{LockTimeout: cfg.PGLockTimeout})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.Up(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	svc := app.NewServices(cfg, logger, pool, nil, nil)

	units, err := svc.MasterData.ListUnits(ctx)
	if err != nil {
		log.Fatalf("list units: %v", err)
	}
	if len(units) > 0 {
		fmt.Println("✓ Database already seeded, nothing to do")
		return
	}

	fmt.Println("→ Seeding units...")
	unitIDs, err := seedUnits(ctx, svc)
	if err != nil {
		log.Fatalf("seed units: %v", err)
	}

	fmt.Println("→ Seeding supplies and purchases...")
	supplies, err := seedSupplies(ctx, svc, unitIDs)
	if err != nil {
		log.Fatalf("seed supplies: %v", err)
	}

	fmt.Println("→ Seeding products and recipes...")
	if err := seedRecipes(ctx, svc, supplies); err != nil {
		log.Fatalf("seed recipes: %v", err)
	}

	fmt.Println("→ Seeding fixed costs...")
	if err := seedFixedCosts(ctx, svc); err != nil {
		log.Fatalf("seed fixed costs: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedUnits(ctx context.Context, svc *app.Services) (map[string]uuid.UUID, error) {
	units := []masterdata.UnitInput{
		{Code: "unidad", Name: "Unidad"},
		{Code: "m2", Name: "Metro cuadrado"},
		{Code: "ml", Name: "Mililitro"},
		{Code: "kg", Name: "Kilogramo"},
	}
	ids := make(map[string]uuid.UUID, len(units))
	for _, in := range units {
		u, err := svc.MasterData.CreateUnit(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", in.Code, err)
		}
		ids[u.Code] = u.ID
	}
	return ids, nil
}

type seedSupply struct {
	name        string
	unit        string
	stockMin    float64
	pack        string
	unitsInBase float64
	packs       float64
	packCost    float64
}

func seedSupplies(ctx context.Context, svc *app.Services, unitIDs map[string]uuid.UUID) (map[string]inventory.Supply, error) {
	rows := []seedSupply{
		{name: "Papel bond carta", unit: "unidad", stockMin: 500, pack: "Resma 500", unitsInBase: 500, packs: 10, packCost: 95},
		{name: "Lona 13oz", unit: "m2", stockMin: 20, pack: "Rollo 1.5x50", unitsInBase: 75, packs: 2, packCost: 1800},
		{name: "Tinta solvente", unit: "ml", stockMin: 1000, pack: "Botella 1L", unitsInBase: 1000, packs: 8, packCost: 650},
		{name: "Ojales", unit: "unidad", stockMin: 100, pack: "Bolsa 1000", unitsInBase: 1000, packs: 1, packCost: 300},
	}
	out := make(map[string]inventory.Supply, len(rows))
	for _, row := range rows {
		supply, err := svc.Inventory.RegisterSupply(ctx, inventory.SupplyInput{
			Name:       row.name,
			UnitBaseID: unitIDs[row.unit],
			StockMin:   row.stockMin,
		})
		if err != nil {
			return nil, fmt.Errorf("supply %s: %w", row.name, err)
		}
		pres, err := svc.Procurement.CreatePresentation(ctx, procurement.PresentationInput{
			SupplyID:    supply.ID,
			Name:        row.pack,
			UnitsInBase: row.unitsInBase,
		})
		if err != nil {
			return nil, fmt.Errorf("presentation %s: %w", row.pack, err)
		}
		if _, err := svc.Procurement.RecordPurchase(ctx, procurement.PurchaseInput{
			SupplyID:       supply.ID,
			PresentationID: pres.ID,
			PacksQty:       row.packs,
			TotalCost:      row.packs * row.packCost,
			SupplierName:   "Distribuidora Central",
			Notes:          "inventario inicial",
		}); err != nil {
			return nil, fmt.Errorf("purchase %s: %w", row.name, err)
		}
		out[row.name] = supply
	}
	return out, nil
}

func seedRecipes(ctx context.Context, svc *app.Services, supplies map[string]inventory.Supply) error {
	flyer, err := svc.MasterData.CreateProduct(ctx, masterdata.ProductInput{
		Name:     "Volante carta",
		Type:     masterdata.ProductFixed,
		Category: "Impresion digital",
		UnitSale: "unidad",
	})
	if err != nil {
		return fmt.Errorf("product volante: %w", err)
	}
	flyerRecipe, err := svc.Recipes.CreateRecipe(ctx, recipes.RecipeInput{ProductID: flyer.ID, Name: "Volante carta 1 cara"})
	if err != nil {
		return fmt.Errorf("recipe volante: %w", err)
	}
	if _, err := svc.Recipes.AddItem(ctx, flyerRecipe.ID, recipes.ItemInput{
		SupplyID: supplies["Papel bond carta"].ID,
		QtyBase:  float(1),
		WastePct: 5,
	}); err != nil {
		return fmt.Errorf("recipe volante item: %w", err)
	}

	margin := 0.45
	banner, err := svc.MasterData.CreateProduct(ctx, masterdata.ProductInput{
		Name:         "Banner",
		Type:         masterdata.ProductVariable,
		Category:     "Gran formato",
		UnitSale:     "unidad",
		MarginTarget: &margin,
	})
	if err != nil {
		return fmt.Errorf("product banner: %w", err)
	}
	bannerRecipe, err := svc.Recipes.CreateRecipe(ctx, recipes.RecipeInput{ProductID: banner.ID, Name: "Banner lona 13oz"})
	if err != nil {
		return fmt.Errorf("recipe banner: %w", err)
	}
	if _, err := svc.Recipes.AddVariable(ctx, bannerRecipe.ID, recipes.VariableInput{
		Code:         "copias",
		Label:        "Copias",
		MinValue:     float(1),
		MaxValue:     float(100),
		DefaultValue: float(1),
	}); err != nil {
		return fmt.Errorf("recipe banner variable: %w", err)
	}
	if _, err := svc.Recipes.AddOption(ctx, bannerRecipe.ID, recipes.OptionInput{
		Code:  "acabado",
		Label: "Acabado",
		Values: []recipes.OptionValueInput{
			{ValueKey: "sin_ojales", Label: "Sin ojales", NumericValue: 0},
			{ValueKey: "ojales", Label: "Con ojales", NumericValue: 1},
		},
	}); err != nil {
		return fmt.Errorf("recipe banner option: %w", err)
	}
	items := []recipes.ItemInput{
		{SupplyID: supplies["Lona 13oz"].ID, QtyFormula: "ancho * alto * copias", WastePct: 8},
		{SupplyID: supplies["Tinta solvente"].ID, QtyFormula: "ancho * alto * copias * 12", WastePct: 3},
		{SupplyID: supplies["Ojales"].ID, QtyFormula: "acabado * (ancho + alto) * 2 * copias", WastePct: 0},
	}
	for _, in := range items {
		if _, err := svc.Recipes.AddItem(ctx, bannerRecipe.ID, in); err != nil {
			return fmt.Errorf("recipe banner item: %w", err)
		}
	}
	if _, err := svc.Recipes.AddRule(ctx, bannerRecipe.ID, recipes.RuleInput{
		Scope:          recipes.ScopeGlobal,
		ConditionVar:   "copias",
		Operator:       ">=",
		ConditionValue: "10",
		EffectType:     recipes.EffectMultiplier,
		EffectValue:    0.9,
	}); err != nil {
		return fmt.Errorf("recipe banner rule: %w", err)
	}
	return nil
}

func seedFixedCosts(ctx context.Context, svc *app.Services) error {
	now := time.Now()
	period, err := svc.FixedCosts.CreatePeriod(ctx, fixedcosts.PeriodInput{
		Year:            now.Year(),
		Month:           int(now.Month()),
		EstimatedOrders: 400,
		Active:          true,
	})
	if err != nil {
		return fmt.Errorf("period: %w", err)
	}
	items := []fixedcosts.ItemInput{
		{Name: "Alquiler", Amount: 12000},
		{Name: "Energia electrica", Amount: 4500},
		{Name: "Planilla", Amount: 30000},
		{Name: "Internet", Amount: 900},
	}
	for _, in := range items {
		if _, err := svc.FixedCosts.AddItem(ctx, period.ID, in); err != nil {
			return fmt.Errorf("fixed cost %s: %w", in.Name, err)
		}
	}
	return nil
}

func float(v float64) *float64 { return &v }
