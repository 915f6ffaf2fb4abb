// Package quantity converts theoretical recipe quantities into the quantities
// actually drawn from stock once waste is accounted for.
package quantity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sdsinventory/backend/internal/shared"
)

// DefaultTTL is how long a loaded piece-unit set is trusted.
const DefaultTTL = 60 * time.Second

// DefaultPieceCodes classify discrete units when no override is persisted.
var DefaultPieceCodes = []string{
	"unidad", "pieza", "unidad/pieza",
	"unit", "units", "piece", "pieces",
	"u", "ud", "uds", "pz", "pza", "pzas", "pc", "pcs",
}

// Loader reads the persisted piece-unit override codes.
type Loader interface {
	PieceUnitCodes(ctx context.Context) ([]string, error)
}

// PieceUnits caches the set of unit codes treated as discrete pieces.
type PieceUnits struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu       sync.RWMutex
	codes    map[string]struct{}
	loadedAt time.Time

	group singleflight.Group
}

// NewPieceUnits builds the cache. A nil loader always yields the defaults.
func NewPieceUnits(loader Loader, ttl time.Duration, logger *slog.Logger) *PieceUnits {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PieceUnits{loader: loader, ttl: ttl, now: time.Now, logger: logger}
}

// Codes returns the current set, refreshing it when older than the TTL.
// Concurrent refreshes collapse into one loader call.
func (c *PieceUnits) Codes(ctx context.Context) map[string]struct{} {
	if c == nil {
		return defaultSet()
	}
	c.mu.RLock()
	codes, loadedAt := c.codes, c.loadedAt
	c.mu.RUnlock()
	if codes != nil && c.now().Sub(loadedAt) < c.ttl {
		return codes
	}
	v, _, _ := c.group.Do("piece-units", func() (any, error) {
		c.mu.RLock()
		current, at := c.codes, c.loadedAt
		c.mu.RUnlock()
		if current != nil && c.now().Sub(at) < c.ttl {
			return current, nil
		}
		fresh := c.load(ctx)
		c.mu.Lock()
		c.codes = fresh
		c.loadedAt = c.now()
		c.mu.Unlock()
		return fresh, nil
	})
	return v.(map[string]struct{})
}

// Invalidate forces the next lookup to reload.
func (c *PieceUnits) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.codes = nil
	c.mu.Unlock()
}

// IsPiece reports whether a unit code or name denotes discrete pieces.
func (c *PieceUnits) IsPiece(ctx context.Context, unitCode, unitName string) bool {
	codes := c.Codes(ctx)
	if _, ok := codes[normalize(unitCode)]; ok {
		return true
	}
	_, ok := codes[normalize(unitName)]
	return ok
}

func (c *PieceUnits) load(ctx context.Context) map[string]struct{} {
	if c.loader == nil {
		return defaultSet()
	}
	raw, err := c.loader.PieceUnitCodes(ctx)
	if err != nil {
		c.logger.Warn("piece unit codes unavailable, using defaults", slog.Any("error", err))
		return defaultSet()
	}
	set := make(map[string]struct{}, len(raw))
	for _, code := range raw {
		if code = normalize(code); code != "" {
			set[code] = struct{}{}
		}
	}
	if len(set) == 0 {
		return defaultSet()
	}
	return set
}

func defaultSet() map[string]struct{} {
	set := make(map[string]struct{}, len(DefaultPieceCodes))
	for _, code := range DefaultPieceCodes {
		set[code] = struct{}{}
	}
	return set
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Policy applies waste percentages to base quantities.
type Policy struct {
	units *PieceUnits
}

// NewPolicy builds a Policy. A nil cache classifies with the defaults.
func NewPolicy(units *PieceUnits) *Policy {
	return &Policy{units: units}
}

// ApplyWaste returns the quantity to draw from stock for qty at wastePct.
// Piece units treat waste as yield loss and round up to whole pieces;
// continuous units add the percentage.
func (p *Policy) ApplyWaste(ctx context.Context, qty, wastePct float64, unitCode, unitName string) (float64, error) {
	if wastePct < 0 {
		return 0, fmt.Errorf("%w: waste_pct must be >= 0", shared.ErrInvalidInput)
	}
	if wastePct == 0 {
		return qty, nil
	}
	var units *PieceUnits
	if p != nil {
		units = p.units
	}
	if units.IsPiece(ctx, unitCode, unitName) {
		if wastePct >= 100 {
			return 0, fmt.Errorf("%w: waste_pct must be < 100 for piece units", shared.ErrInvalidInput)
		}
		return math.Ceil(qty / (1 - wastePct/100)), nil
	}
	return qty * (1 + wastePct/100), nil
}
