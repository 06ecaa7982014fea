package port

import (
	"context"
	"math/big"

	"portfolio_tracker/internal/domain/entity"
)

// BalanceReading is the raw outcome of a single balance fetch from a chain.
type BalanceReading struct {
	Raw       *big.Int
	Formatted string
}

// ChainReader abstracts the upstream RPC provider. Implementations wrap
// failures in entity.UpstreamFetchError.
type ChainReader interface {
	FetchNativeBalance(ctx context.Context, address string, network entity.Network) (BalanceReading, error)
	FetchTokenBalance(ctx context.Context, address string, network entity.Network, token entity.Token) (BalanceReading, error)
}

// PriceReader abstracts the upstream spot price provider. A price id absent
// from the batch result map means "not found", not an error.
type PriceReader interface {
	FetchPrice(ctx context.Context, priceID string) (float64, bool, error)
	FetchPricesBatch(ctx context.Context, priceIDs []string) (map[string]float64, error)
}
