package client

import (
	"context"
	"errors"
	"testing"

	"portfolio_tracker/internal/domain/entity"
)

func TestStubChainReaderFailsWithUpstreamError(t *testing.T) {
	reader := &StubChainReader{Family: "solana"}
	network := entity.Network{ID: "solana-mainnet", Name: "Solana"}

	_, err := reader.FetchNativeBalance(context.Background(), "somepubkey", network)
	var fetchErr *entity.UpstreamFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected UpstreamFetchError, got %v", err)
	}

	_, err = reader.FetchTokenBalance(context.Background(), "somepubkey", network, entity.Token{Symbol: "BONK"})
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected UpstreamFetchError, got %v", err)
	}
}
