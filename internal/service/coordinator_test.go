package service

import (
	"context"
	"sync"
	"testing"

	"portfolio_tracker/internal/domain/entity"

	"go.uber.org/zap"
)

type fakeScanner struct {
	mu      sync.Mutex
	results map[string]*entity.ScanResult
	errs    map[string]error
	calls   int
}

func (f *fakeScanner) ScanNetwork(_ context.Context, _ string, _ entity.Network) *entity.NetworkBalance {
	return nil
}

func (f *fakeScanner) ScanAddress(_ context.Context, address string, _ entity.ScanOptions) (*entity.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[address]; err != nil {
		return nil, err
	}
	if result, ok := f.results[address]; ok {
		return result, nil
	}
	return &entity.ScanResult{Address: address, Balances: []*entity.NetworkBalance{}}, nil
}

func TestScanAllIsolatesFailures(t *testing.T) {
	scanner := &fakeScanner{
		results: map[string]*entity.ScanResult{
			"0xaaa": {Address: "0xaaa", TotalUSDValue: 100},
			"0xccc": {Address: "0xccc", TotalUSDValue: 50},
		},
		errs: map[string]error{
			"0xbbb": &entity.ValidationError{Field: "address", Message: "bad address"},
		},
	}
	coordinator := NewCoordinator(zap.NewNop(), scanner, 2)

	addresses := []entity.TrackedAddress{
		{ID: "1", Address: "0xaaa", Label: "hot"},
		{ID: "2", Address: "0xbbb"},
		{ID: "3", Address: "0xccc"},
	}
	portfolios, failures := coordinator.ScanAll(context.Background(), addresses, entity.ScanOptions{})

	if len(portfolios) != 2 {
		t.Fatalf("expected 2 portfolios, got %d", len(portfolios))
	}
	// input order is preserved after the failed entry is dropped
	if portfolios[0].Address != "0xaaa" || portfolios[1].Address != "0xccc" {
		t.Errorf("unexpected portfolio order: %s, %s", portfolios[0].Address, portfolios[1].Address)
	}
	if portfolios[0].Label != "hot" || portfolios[0].AddressID != "1" {
		t.Errorf("expected tracked metadata carried through, got %+v", portfolios[0])
	}
	if portfolios[0].TotalUSDValue != 100 {
		t.Errorf("expected total carried from scan result, got %v", portfolios[0].TotalUSDValue)
	}

	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].AddressID != "2" || failures[0].Address != "0xbbb" || failures[0].Message == "" {
		t.Errorf("unexpected failure record: %+v", failures[0])
	}
}

func TestScanAllEmptyInput(t *testing.T) {
	coordinator := NewCoordinator(zap.NewNop(), &fakeScanner{}, 4)

	portfolios, failures := coordinator.ScanAll(context.Background(), nil, entity.ScanOptions{})
	if len(portfolios) != 0 || len(failures) != 0 {
		t.Errorf("expected empty results, got %d portfolios and %d failures", len(portfolios), len(failures))
	}
}

func TestScanAllScansEveryAddress(t *testing.T) {
	scanner := &fakeScanner{}
	coordinator := NewCoordinator(zap.NewNop(), scanner, 1)

	addresses := []entity.TrackedAddress{
		{ID: "1", Address: "0xaaa"},
		{ID: "2", Address: "0xbbb"},
		{ID: "3", Address: "0xccc"},
	}
	coordinator.ScanAll(context.Background(), addresses, entity.ScanOptions{})

	if scanner.calls != 3 {
		t.Errorf("expected every address scanned, got %d calls", scanner.calls)
	}
}
