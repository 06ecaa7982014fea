package client

import (
	"context"
	"fmt"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

// StubChainReader stands in for chain families without a real reader yet.
// Every fetch fails with an upstream error naming the unsupported family.
type StubChainReader struct {
	Family string
}

// FetchNativeBalance implements port.ChainReader.
func (r *StubChainReader) FetchNativeBalance(_ context.Context, _ string, network entity.Network) (port.BalanceReading, error) {
	return port.BalanceReading{}, &entity.UpstreamFetchError{
		Resource: fmt.Sprintf("native balance on %s", network.ID),
		Err:      fmt.Errorf("chain family %q is not supported", r.Family),
	}
}

// FetchTokenBalance implements port.ChainReader.
func (r *StubChainReader) FetchTokenBalance(_ context.Context, _ string, network entity.Network, token entity.Token) (port.BalanceReading, error) {
	return port.BalanceReading{}, &entity.UpstreamFetchError{
		Resource: fmt.Sprintf("token %s on %s", token.Symbol, network.ID),
		Err:      fmt.Errorf("chain family %q is not supported", r.Family),
	}
}
