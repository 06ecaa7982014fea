package port

import (
	"context"

	"portfolio_tracker/internal/cache/ttlcache"
	"portfolio_tracker/internal/domain/entity"
)

// PriceService is the global, cross-user USD spot price cache. "Absent" is an
// expected outcome, never an error.
type PriceService interface {
	// GetPrice resolves one price. Stablecoins short-circuit to 1.0 and
	// wrapped tokens are looked up under their underlying asset's price id.
	GetPrice(ctx context.Context, priceID, symbol string) (float64, bool)
	// GetPrices resolves a batch, deduplicating identical resolved lookup
	// keys into a single upstream call.
	GetPrices(ctx context.Context, requests []entity.PriceRequest) entity.PriceLookup
	// Refresh force-fetches the given ids and overwrites the cache
	// regardless of current freshness.
	Refresh(ctx context.Context, priceIDs []string) error
	Clear()
	Stats() ttlcache.Stats
}

// BalanceScanner orchestrates balance scans for one address at a time.
type BalanceScanner interface {
	// ScanNetwork always returns a NetworkBalance; a native-balance fetch
	// failure is reported through its Error field, not a Go error.
	ScanNetwork(ctx context.Context, address string, network entity.Network) *entity.NetworkBalance
	ScanAddress(ctx context.Context, address string, opts entity.ScanOptions) (*entity.ScanResult, error)
}
