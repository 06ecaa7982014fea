package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/cache/ownercache"
	"portfolio_tracker/internal/config"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/registry"
	"portfolio_tracker/pkg/utils"

	"go.uber.org/zap"
)

const testAddress = "0x1111111111111111111111111111111111111111"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fakeChainReader struct {
	mu          sync.Mutex
	native      map[string]*big.Int // network id -> raw native amount
	tokens      map[string]*big.Int // network id + "/" + symbol -> raw amount
	nativeErr   map[string]error
	nativeCalls map[string]int
}

func newFakeChainReader() *fakeChainReader {
	return &fakeChainReader{
		native:      make(map[string]*big.Int),
		tokens:      make(map[string]*big.Int),
		nativeErr:   make(map[string]error),
		nativeCalls: make(map[string]int),
	}
}

func (f *fakeChainReader) FetchNativeBalance(_ context.Context, _ string, network entity.Network) (port.BalanceReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nativeCalls[network.ID]++
	if err := f.nativeErr[network.ID]; err != nil {
		return port.BalanceReading{}, err
	}
	raw := f.native[network.ID]
	if raw == nil {
		raw = big.NewInt(0)
	}
	return port.BalanceReading{Raw: raw, Formatted: utils.FormatBigInt(raw, network.Native.Decimals)}, nil
}

func (f *fakeChainReader) FetchTokenBalance(_ context.Context, _ string, network entity.Network, token entity.Token) (port.BalanceReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw := f.tokens[network.ID+"/"+token.Symbol]
	if raw == nil {
		raw = big.NewInt(0)
	}
	return port.BalanceReading{Raw: raw, Formatted: utils.FormatBigInt(raw, token.Decimals)}, nil
}

func (f *fakeChainReader) callsFor(networkID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nativeCalls[networkID]
}

func testNetwork(id string) entity.Network {
	return entity.Network{
		ID:          id,
		Name:        id,
		ChainID:     1,
		RPCEndpoint: "http://localhost:8545",
		Native:      entity.NativeToken{Symbol: "ETH", Decimals: 18, PriceID: "ethereum"},
	}
}

type scannerFixture struct {
	scanner *ScannerService
	reader  *fakeChainReader
	prices  *fakePriceReader
	clock   *fakeClock
}

func newScannerFixture(t *testing.T, networkIDs ...string) *scannerFixture {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	networkRegistry := registry.NewNetworkRegistry(zap.NewNop())
	for _, id := range networkIDs {
		if err := networkRegistry.Register(testNetwork(id)); err != nil {
			t.Fatalf("failed to register network %s: %v", id, err)
		}
	}

	priceReader := &fakePriceReader{prices: map[string]float64{"ethereum": 3000}}
	prices := NewPriceService(zap.NewNop(), config.PriceServiceConfig{}, time.Hour, priceReader)

	cfg := config.Config{
		Scanner: config.ScannerConfig{
			FetchTimeoutMs:        5000,
			RateLimit:             1000,
			BurstLimit:            1000,
			MaxConcurrentNetworks: 4,
		},
		Cache: config.CacheConfig{
			BalanceActiveTTLMinutes:   10,
			BalanceInactiveTTLMinutes: 60,
		},
	}

	reader := newFakeChainReader()
	balanceCache := ownercache.New[*entity.NetworkBalance](time.Hour, 0, ownercache.WithClock[*entity.NetworkBalance](clock.Now))
	stateCache := ownercache.New[bool](time.Hour, 0, ownercache.WithClock[bool](clock.Now))

	scanner := NewScannerService(zap.NewNop(), cfg, networkRegistry, reader, prices,
		balanceCache, stateCache, NewActiveAddresses(), WithScannerClock(clock.Now))
	return &scannerFixture{scanner: scanner, reader: reader, prices: priceReader, clock: clock}
}

func TestScanAddressRejectsInvalidAddress(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")

	_, err := fx.scanner.ScanAddress(context.Background(), "not-an-address", entity.ScanOptions{})
	var validation *entity.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestScanAddressUnknownNetworkFails(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")

	_, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{Networks: []string{"solana"}})
	var notFound *entity.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestScanAddressPartialFailureKeepsSiblings(t *testing.T) {
	fx := newScannerFixture(t, "a", "b", "c")
	fx.reader.native["a"] = big.NewInt(1e18)
	fx.reader.nativeErr["b"] = errors.New("rpc timeout")
	fx.reader.native["c"] = big.NewInt(2e18)

	result, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if len(result.Balances) != 3 {
		t.Fatalf("expected 3 network results, got %d", len(result.Balances))
	}
	// results stay in registration order regardless of completion order
	for i, want := range []string{"a", "b", "c"} {
		if result.Balances[i].NetworkID != want {
			t.Errorf("result[%d] = %s, want %s", i, result.Balances[i].NetworkID, want)
		}
	}
	if len(result.ErroredNetworkIDs) != 1 || result.ErroredNetworkIDs[0] != "b" {
		t.Errorf("expected b errored, got %v", result.ErroredNetworkIDs)
	}
	if result.Balances[1].Error == "" {
		t.Error("expected errored network to carry its error message")
	}
	if len(result.FetchedNetworkIDs) != 2 {
		t.Errorf("expected a and c fetched, got %v", result.FetchedNetworkIDs)
	}
	// 1 ETH + 2 ETH at $3000
	if result.TotalUSDValue != 9000 {
		t.Errorf("expected total 9000, got %v", result.TotalUSDValue)
	}
}

func TestScanAddressSecondScanServedFromCacheSameObject(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	fx.reader.native["ethereum"] = big.NewInt(1e18)

	first, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	second, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}

	if fx.reader.callsFor("ethereum") != 1 {
		t.Fatalf("expected one upstream fetch, got %d", fx.reader.callsFor("ethereum"))
	}
	if len(second.CachedNetworkIDs) != 1 {
		t.Fatalf("expected cached provenance, got %v", second.CachedNetworkIDs)
	}
	if first.Balances[0] != second.Balances[0] {
		t.Error("expected the cached scan to return the same payload object")
	}
}

func TestScanAddressCacheIsCaseInsensitive(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	fx.reader.native["ethereum"] = big.NewInt(1e18)

	lower := "0xabcdef1111111111111111111111111111111111"
	if _, err := fx.scanner.ScanAddress(context.Background(), lower, entity.ScanOptions{}); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	upper := "0xABCDEF1111111111111111111111111111111111"
	result, err := fx.scanner.ScanAddress(context.Background(), upper, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.CachedNetworkIDs) != 1 {
		t.Errorf("expected cache hit across address casings, got %v", result.CachedNetworkIDs)
	}
}

func TestActiveBalanceExpiresOnShortTTL(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	fx.reader.native["ethereum"] = big.NewInt(1e18)

	if _, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{}); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	fx.clock.Advance(9 * time.Minute)
	result, _ := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if len(result.CachedNetworkIDs) != 1 {
		t.Fatalf("expected cache hit at 9 minutes for a funded address, got %v", result.FetchedNetworkIDs)
	}

	fx.clock.Advance(2 * time.Minute) // 11 minutes total, past the 10-minute active TTL
	result, _ = fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if len(result.FetchedNetworkIDs) != 1 {
		t.Fatalf("expected re-fetch at 11 minutes, got cached=%v", result.CachedNetworkIDs)
	}
	if fx.reader.callsFor("ethereum") != 2 {
		t.Errorf("expected 2 upstream fetches, got %d", fx.reader.callsFor("ethereum"))
	}
}

func TestEmptyBalanceSurvivesOnLongTTL(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	// zero native balance, no tokens

	if _, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{}); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	fx.clock.Advance(11 * time.Minute)
	result, _ := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if len(result.CachedNetworkIDs) != 1 {
		t.Fatalf("expected empty balance cached past 11 minutes, got fetched=%v", result.FetchedNetworkIDs)
	}

	fx.clock.Advance(50 * time.Minute) // 61 minutes total, past the 60-minute inactive TTL
	result, _ = fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if len(result.FetchedNetworkIDs) != 1 {
		t.Fatalf("expected re-fetch at 61 minutes, got cached=%v", result.CachedNetworkIDs)
	}
}

func TestRefreshTTLComesFromPriorState(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	fx.reader.native["ethereum"] = big.NewInt(1e18)

	first, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if first.RefreshStrategy[0].TTLUsed != 10*time.Minute {
		t.Fatalf("funded first scan should cache on the active TTL, got %v", first.RefreshStrategy[0].TTLUsed)
	}

	// funds leave the address; the rescan still caches on the TTL implied by
	// the previously recorded state
	fx.reader.native["ethereum"] = big.NewInt(0)
	fx.clock.Advance(11 * time.Minute)
	second, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	decision := second.RefreshStrategy[0]
	if !decision.HadBalance || decision.TTLUsed != 10*time.Minute {
		t.Fatalf("expected prior funded state to drive the TTL, got %+v", decision)
	}

	// once the empty result ages out, the next scan observes no prior state
	// and records the empty observation under the long TTL
	fx.clock.Advance(11 * time.Minute)
	third, _ := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	decision = third.RefreshStrategy[0]
	if decision.HadBalance || decision.TTLUsed != 60*time.Minute {
		t.Fatalf("expected empty observation on the inactive TTL, got %+v", decision)
	}

	fx.clock.Advance(11 * time.Minute)
	fourth, _ := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if len(fourth.CachedNetworkIDs) != 1 {
		t.Fatalf("expected now-empty address served from cache on the long TTL, got %v", fourth.FetchedNetworkIDs)
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	fx.reader.native["ethereum"] = big.NewInt(1e18)

	if _, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{}); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	result, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{ForceRefresh: true})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if len(result.FetchedNetworkIDs) != 1 {
		t.Fatalf("expected force refresh to re-fetch, got cached=%v", result.CachedNetworkIDs)
	}
	if fx.reader.callsFor("ethereum") != 2 {
		t.Errorf("expected 2 upstream fetches, got %d", fx.reader.callsFor("ethereum"))
	}
}

func TestFailedScanIsNotCached(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	fx.reader.nativeErr["ethereum"] = errors.New("rpc down")

	if _, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{}); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	// upstream recovers; the next scan must go out instead of serving the error
	fx.reader.mu.Lock()
	delete(fx.reader.nativeErr, "ethereum")
	fx.reader.native["ethereum"] = big.NewInt(1e18)
	fx.reader.mu.Unlock()

	result, _ := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if len(result.FetchedNetworkIDs) != 1 {
		t.Fatalf("expected re-fetch after an errored scan, got cached=%v", result.CachedNetworkIDs)
	}
	if result.Balances[0].Error != "" {
		t.Errorf("expected recovered scan to be clean, got error %q", result.Balances[0].Error)
	}
}

func TestScanComputesUSDTotals(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	fx.prices.prices["usd-coin"] = 1.0

	networkRegistry := fx.scanner.registry
	if err := networkRegistry.RegisterToken("ethereum", entity.Token{
		Symbol: "USDC", ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, PriceID: "usd-coin",
	}); err != nil {
		t.Fatalf("failed to register token: %v", err)
	}

	// 2.5 ETH at $3000 plus 100 USDC
	fx.reader.native["ethereum"] = new(big.Int).Mul(big.NewInt(25), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil))
	fx.reader.tokens["ethereum/USDC"] = big.NewInt(100_000_000)

	result, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	nb := result.Balances[0]
	if nb.TotalUSDValue != 7600 {
		t.Errorf("expected network total 7600, got %v", nb.TotalUSDValue)
	}
	if result.TotalUSDValue != 7600 {
		t.Errorf("expected scan total 7600, got %v", result.TotalUSDValue)
	}
	if nb.NativeBalance == nil || nb.NativeBalance.USDValue == nil || *nb.NativeBalance.USDValue != 7500 {
		t.Errorf("expected native USD value 7500, got %+v", nb.NativeBalance)
	}
	if len(nb.TokenBalances) != 1 || nb.TokenBalances[0].USDValue == nil || *nb.TokenBalances[0].USDValue != 100 {
		t.Errorf("expected USDC USD value 100, got %+v", nb.TokenBalances)
	}
	if !nb.HasNonZeroBalance {
		t.Error("expected funded network to record a non-zero balance state")
	}
}

func TestTokenBalanceCountsWithZeroNative(t *testing.T) {
	fx := newScannerFixture(t, "polygon")
	fx.prices.prices["usd-coin"] = 1.0
	if err := fx.scanner.registry.RegisterToken("polygon", entity.Token{
		Symbol: "USDC", ContractAddress: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Decimals: 6, PriceID: "usd-coin",
	}); err != nil {
		t.Fatalf("failed to register token: %v", err)
	}
	// zero native, 100 USDC
	fx.reader.tokens["polygon/USDC"] = big.NewInt(100_000_000)

	result, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	nb := result.Balances[0]
	if !nb.HasNonZeroBalance {
		t.Fatal("token holdings must count toward the balance state even with zero native")
	}
	if result.RefreshStrategy[0].TTLUsed != 10*time.Minute {
		t.Errorf("expected the short TTL for a token-funded network, got %v", result.RefreshStrategy[0].TTLUsed)
	}
	if nb.TotalUSDValue != 100 {
		t.Errorf("expected network total 100, got %v", nb.TotalUSDValue)
	}
}

func TestZeroTokenBalancesAreOmitted(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	if err := fx.scanner.registry.RegisterToken("ethereum", entity.Token{
		Symbol: "USDC", ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, PriceID: "usd-coin",
	}); err != nil {
		t.Fatalf("failed to register token: %v", err)
	}
	fx.reader.native["ethereum"] = big.NewInt(1e18)
	// token balance stays zero

	result, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.Balances[0].TokenBalances) != 0 {
		t.Errorf("expected zero token balances omitted, got %+v", result.Balances[0].TokenBalances)
	}
}

func TestUnpricedAssetStillCountsAsBalance(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	delete(fx.prices.prices, "ethereum")
	fx.reader.native["ethereum"] = big.NewInt(1e18)

	result, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	nb := result.Balances[0]
	if nb.NativeBalance.USDValue != nil {
		t.Errorf("expected nil USD value for unpriced asset, got %v", *nb.NativeBalance.USDValue)
	}
	if nb.TotalUSDValue != 0 {
		t.Errorf("expected zero USD total, got %v", nb.TotalUSDValue)
	}
	if !nb.HasNonZeroBalance {
		t.Error("unpriced holdings still count toward the balance state")
	}
}

func TestClearBalancesForcesRefetch(t *testing.T) {
	fx := newScannerFixture(t, "ethereum")
	fx.reader.native["ethereum"] = big.NewInt(1e18)

	if _, err := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{}); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	fx.scanner.ClearBalances(testAddress)

	result, _ := fx.scanner.ScanAddress(context.Background(), testAddress, entity.ScanOptions{})
	if len(result.FetchedNetworkIDs) != 1 {
		t.Fatalf("expected re-fetch after clear, got cached=%v", result.CachedNetworkIDs)
	}
}
