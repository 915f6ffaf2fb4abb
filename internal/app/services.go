package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sdsinventory/backend/internal/fixedcosts"
	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/observability"
	"github.com/sdsinventory/backend/internal/procurement"
	"github.com/sdsinventory/backend/internal/production"
	"github.com/sdsinventory/backend/internal/quantity"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/sales"
	"github.com/sdsinventory/backend/internal/sales/quotations"
	"github.com/sdsinventory/backend/internal/shared"
)

// Services holds the domain services shared by the API server and the worker.
type Services struct {
	PieceUnits  *quantity.PieceUnits
	SalesCache  *sales.Cache
	MasterData  *masterdata.Service
	Inventory   *inventory.Service
	Procurement *procurement.Service
	Recipes     *recipes.Service
	FixedCosts  *fixedcosts.Service
	Production  *production.Service
	Sales       *sales.Service
	Quotes      *quotations.Service
	Idempotency *shared.IdempotencyStore
	AuditLogger *shared.AuditLogger
}

// NewServices wires every service over PostgreSQL. redisClient and metrics
// may be nil; the sales summary then always reads through.
func NewServices(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics) *Services {
	audit := shared.NewAuditLogger(pool)
	idem := shared.NewIdempotencyStore(pool)

	var observer inventory.Observer
	if metrics != nil {
		observer = metrics
	}

	masterRepo := masterdata.NewRepository(pool)
	pieces := quantity.NewPieceUnits(masterRepo, cfg.PieceUnitCacheTTL, logger)
	policy := quantity.NewPolicy(pieces)
	engine := recipes.NewEngine(policy)

	var cache *sales.Cache
	if redisClient != nil {
		cache = sales.NewCache(redisClient, cfg.SummaryCacheTTL)
	}

	salesService := sales.NewService(sales.NewRepository(pool), engine, sales.Options{
		Idempotency:   idem,
		Audit:         audit,
		Observer:      observer,
		Cache:         cache,
		Currency:      cfg.DefaultCurrency,
		DefaultMargin: cfg.DefaultMargin,
		Logger:        logger,
	})

	return &Services{
		PieceUnits:  pieces,
		SalesCache:  cache,
		MasterData:  masterdata.NewService(masterRepo, pieces),
		Inventory:   inventory.NewService(inventory.NewRepository(pool), audit, logger),
		Procurement: procurement.NewService(procurement.NewRepository(pool), idem, audit, observer, logger),
		Recipes:     recipes.NewService(recipes.NewRepository(pool), engine, cfg.DefaultCurrency),
		FixedCosts:  fixedcosts.NewService(fixedcosts.NewRepository(pool), cfg.DefaultCurrency),
		Production:  production.NewService(production.NewRepository(pool), policy, audit, observer, cfg.DefaultCurrency, logger),
		Sales:       salesService,
		Quotes:      quotations.NewService(quotations.NewRepository(pool), salesService, audit, logger),
		Idempotency: idem,
		AuditLogger: audit,
	}
}

// Handlers builds the router parameters for every service.
func (s *Services) Handlers(cfg *Config, logger *slog.Logger, metrics *observability.Metrics) RouterParams {
	return RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		MasterDataHandler:  masterdata.NewHandler(logger, s.MasterData),
		InventoryHandler:   inventory.NewHandler(logger, s.Inventory),
		ProcurementHandler: procurement.NewHandler(logger, s.Procurement),
		RecipesHandler:     recipes.NewHandler(logger, s.Recipes),
		FixedCostsHandler:  fixedcosts.NewHandler(logger, s.FixedCosts),
		ProductionHandler:  production.NewHandler(logger, s.Production),
		SalesHandler:       sales.NewHandler(logger, s.Sales),
		QuotesHandler:      quotations.NewHandler(logger, s.Quotes),
	}
}
