package service

import (
	"context"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/cache/ownercache"
	"portfolio_tracker/internal/config"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/registry"
	"portfolio_tracker/pkg/metrics"
	"portfolio_tracker/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ScannerService is the balance scan orchestrator. For each (address,
// network) pair it decides between serving a cached NetworkBalance and
// fetching fresh, applying a dynamic TTL driven by the recorded balance
// state: networks that previously held a balance are re-checked on the
// active TTL, empty ones on the longer inactive TTL.
//
// Two parallel caches back the policy: the value cache holds NetworkBalance
// payloads, the state cache the bare has-balance booleans. The split keeps
// the TTL decision independently inspectable and lets it survive a value
// cache swap.
type ScannerService struct {
	logger       *zap.Logger
	registry     *registry.NetworkRegistry
	reader       port.ChainReader
	prices       port.PriceService
	balanceCache *ownercache.Registry[*entity.NetworkBalance]
	stateCache   *ownercache.Registry[bool]
	active       *ActiveAddresses
	limiter      *rate.Limiter
	fetchTimeout time.Duration
	maxParallel  int
	activeTTL    time.Duration
	inactiveTTL  time.Duration
	now          func() time.Time
}

// ScannerOption configures a ScannerService.
type ScannerOption func(*ScannerService)

// WithScannerClock replaces the time source, used by tests.
func WithScannerClock(now func() time.Time) ScannerOption {
	return func(s *ScannerService) {
		s.now = now
	}
}

// NewScannerService wires the orchestrator. The two cache registries are
// injected so the refresh sweeper and the REST surface can share them.
func NewScannerService(
	logger *zap.Logger,
	cfg config.Config,
	networkRegistry *registry.NetworkRegistry,
	reader port.ChainReader,
	prices port.PriceService,
	balanceCache *ownercache.Registry[*entity.NetworkBalance],
	stateCache *ownercache.Registry[bool],
	active *ActiveAddresses,
	opts ...ScannerOption,
) *ScannerService {
	s := &ScannerService{
		logger:       logger.Named("ScannerService"),
		registry:     networkRegistry,
		reader:       reader,
		prices:       prices,
		balanceCache: balanceCache,
		stateCache:   stateCache,
		active:       active,
		limiter:      rate.NewLimiter(rate.Limit(cfg.Scanner.RateLimit), cfg.Scanner.BurstLimit),
		fetchTimeout: time.Duration(cfg.Scanner.FetchTimeoutMs) * time.Millisecond,
		maxParallel:  cfg.Scanner.MaxConcurrentNetworks,
		activeTTL:    time.Duration(cfg.Cache.BalanceActiveTTLMinutes) * time.Minute,
		inactiveTTL:  time.Duration(cfg.Cache.BalanceInactiveTTLMinutes) * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// determineTTL maps a balance state to the cache TTL for that entry.
func (s *ScannerService) determineTTL(hasBalance bool) time.Duration {
	if hasBalance {
		return s.activeTTL
	}
	return s.inactiveTTL
}

// ScanNetwork implements port.BalanceScanner.
func (s *ScannerService) ScanNetwork(ctx context.Context, address string, network entity.Network) *entity.NetworkBalance {
	nb, _ := s.scanAndCache(ctx, address, network)
	return nb
}

// scanAndCache fetches one network fresh, prices the result and writes it to
// the caches. On a native-balance failure the NetworkBalance carries the
// error and nothing is cached; the returned decision is nil in that case.
func (s *ScannerService) scanAndCache(ctx context.Context, address string, network entity.Network) (*entity.NetworkBalance, *entity.RefreshDecision) {
	nb := &entity.NetworkBalance{
		NetworkID:     network.ID,
		NetworkName:   network.Name,
		TokenBalances: []entity.Balance{},
		FetchedAt:     s.now().UnixMilli(),
	}

	native, err := s.fetchNative(ctx, address, network)
	if err != nil {
		// the native balance is load-bearing for the has-balance decision,
		// so its failure is the network-level error
		s.logger.Warn("Native balance fetch failed",
			zap.String("address", address),
			zap.String("networkId", network.ID),
			zap.Error(err))
		metrics.UpstreamErrors.WithLabelValues("native").Inc()
		nb.Error = err.Error()
		return nb, nil
	}

	tokens := s.registry.TokensFor(network.ID)
	type tokenReading struct {
		token   entity.Token
		reading port.BalanceReading
	}
	readings := make([]tokenReading, 0, len(tokens))
	for _, token := range tokens {
		reading, err := s.fetchToken(ctx, address, network, token)
		if err != nil {
			// one bad token never fails the network scan
			s.logger.Warn("Token balance fetch failed, omitting token",
				zap.String("address", address),
				zap.String("networkId", network.ID),
				zap.String("symbol", token.Symbol),
				zap.Error(err))
			metrics.UpstreamErrors.WithLabelValues("token").Inc()
			continue
		}
		if reading.Raw == nil || reading.Raw.Sign() == 0 {
			continue
		}
		readings = append(readings, tokenReading{token: token, reading: reading})
	}

	// one batch price resolution per network scan
	priceRequests := make([]entity.PriceRequest, 0, len(readings)+1)
	priceRequests = append(priceRequests, entity.PriceRequest{PriceID: network.Native.PriceID, Symbol: network.Native.Symbol})
	for _, tr := range readings {
		priceRequests = append(priceRequests, entity.PriceRequest{PriceID: tr.token.PriceID, Symbol: tr.token.Symbol})
	}
	lookup := s.prices.GetPrices(ctx, priceRequests)

	nativePrice, nativePriced := lookup.Prices[network.Native.PriceID]
	nativeBalance := newBalance(network.Native.Symbol, native, network.Native.Decimals, true, "", nativePrice, nativePriced)
	nb.NativeBalance = &nativeBalance

	totalUSD := 0.0
	if nativeBalance.USDValue != nil {
		totalUSD += *nativeBalance.USDValue
	}
	for _, tr := range readings {
		price, priced := lookup.Prices[tr.token.PriceID]
		balance := newBalance(tr.token.Symbol, tr.reading, tr.token.Decimals, false, tr.token.ContractAddress, price, priced)
		nb.TokenBalances = append(nb.TokenBalances, balance)
		if balance.USDValue != nil {
			totalUSD += *balance.USDValue
		}
	}
	nb.TotalUSDValue = totalUSD

	// non-zero means a non-zero native amount or any non-zero token amount;
	// an unpriced asset still counts, so this cannot be derived from the
	// USD total
	nb.HasNonZeroBalance = native.Raw != nil && native.Raw.Sign() > 0 || len(nb.TokenBalances) > 0

	decision := s.cacheScan(address, nb)
	return nb, &decision
}

// cacheScan writes the scan result and its balance state under one TTL. The
// TTL is chosen from the previously recorded state, not from the value being
// written; the first scan of a pair falls back to the fresh observation.
// State read and the two writes form one logical step per (address, network)
// pair (single writer per key).
func (s *ScannerService) cacheScan(address string, nb *entity.NetworkBalance) entity.RefreshDecision {
	hadBalance := nb.HasNonZeroBalance
	if prior, ok := s.stateCache.Get(address, nb.NetworkID); ok {
		hadBalance = prior
	}
	ttl := s.determineTTL(hadBalance)
	s.balanceCache.Set(address, nb.NetworkID, nb, ttl)
	s.stateCache.Set(address, nb.NetworkID, nb.HasNonZeroBalance, ttl)
	return entity.RefreshDecision{NetworkID: nb.NetworkID, HadBalance: hadBalance, TTLUsed: ttl}
}

// freshCached returns the cached NetworkBalance for the pair if its age is
// within the TTL implied by the currently recorded balance state. The stored
// entry TTL is deliberately not trusted: re-deriving from state lets a
// TTL-policy change across deploys apply to entries written before it.
func (s *ScannerService) freshCached(address, networkID string) (*entity.NetworkBalance, bool) {
	meta, ok := s.balanceCache.GetWithMetadata(address, networkID)
	if !ok {
		metrics.CacheMisses.WithLabelValues("balances").Inc()
		return nil, false
	}
	hadBalance := meta.Value.HasNonZeroBalance
	if state, stateOK := s.stateCache.Get(address, networkID); stateOK {
		hadBalance = state
	}
	if s.now().Sub(meta.CreatedAt) > s.determineTTL(hadBalance) {
		metrics.CacheMisses.WithLabelValues("balances").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("balances").Inc()
	return meta.Value, true
}

const (
	outcomeCached  = "cached"
	outcomeFetched = "fetched"
	outcomeErrored = "errored"
)

type networkOutcome struct {
	nb       *entity.NetworkBalance
	kind     string
	decision *entity.RefreshDecision
}

// ScanAddress implements port.BalanceScanner. Networks are scanned
// concurrently but results keep the requested network order. One network's
// failure never aborts its siblings; it is recorded in ErroredNetworkIDs.
func (s *ScannerService) ScanAddress(ctx context.Context, address string, opts entity.ScanOptions) (*entity.ScanResult, error) {
	if err := entity.ValidateAddress(address); err != nil {
		return nil, err
	}
	networks, err := s.registry.Resolve(opts.Networks)
	if err != nil {
		return nil, err
	}
	s.active.Register(address)

	start := time.Now()
	defer func() {
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	outcomes := make([]networkOutcome, len(networks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.maxParallel)
	for i, network := range networks {
		i, network := i, network
		eg.Go(func() error {
			if !opts.ForceRefresh {
				if cached, ok := s.freshCached(address, network.ID); ok {
					outcomes[i] = networkOutcome{nb: cached, kind: outcomeCached}
					metrics.NetworkScans.WithLabelValues(network.ID, outcomeCached).Inc()
					return nil
				}
			}
			nb, decision := s.scanAndCache(egCtx, address, network)
			kind := outcomeFetched
			if nb.Error != "" {
				kind = outcomeErrored
			}
			outcomes[i] = networkOutcome{nb: nb, kind: kind, decision: decision}
			metrics.NetworkScans.WithLabelValues(network.ID, kind).Inc()
			return nil
		})
	}
	// goroutines report failures through the outcome slice, never as errors
	_ = eg.Wait()

	result := &entity.ScanResult{
		Address:           address,
		Balances:          make([]*entity.NetworkBalance, 0, len(networks)),
		CachedNetworkIDs:  []string{},
		FetchedNetworkIDs: []string{},
		ErroredNetworkIDs: []string{},
		RefreshStrategy:   []entity.RefreshDecision{},
	}
	for _, outcome := range outcomes {
		result.Balances = append(result.Balances, outcome.nb)
		result.TotalUSDValue += outcome.nb.TotalUSDValue
		switch outcome.kind {
		case outcomeCached:
			result.CachedNetworkIDs = append(result.CachedNetworkIDs, outcome.nb.NetworkID)
		case outcomeFetched:
			result.FetchedNetworkIDs = append(result.FetchedNetworkIDs, outcome.nb.NetworkID)
		case outcomeErrored:
			result.ErroredNetworkIDs = append(result.ErroredNetworkIDs, outcome.nb.NetworkID)
		}
		if outcome.decision != nil {
			result.RefreshStrategy = append(result.RefreshStrategy, *outcome.decision)
		}
	}

	s.logger.Info("Address scan complete",
		zap.String("address", address),
		zap.Int("networks", len(networks)),
		zap.Int("cached", len(result.CachedNetworkIDs)),
		zap.Int("fetched", len(result.FetchedNetworkIDs)),
		zap.Int("errored", len(result.ErroredNetworkIDs)),
		zap.Float64("totalUsd", result.TotalUSDValue))
	return result, nil
}

// BalanceCacheStats exposes the per-owner balance cache snapshots for the
// operator surface.
func (s *ScannerService) BalanceCacheStats() []ownercache.OwnerStats {
	return s.balanceCache.StatsForAllOwners()
}

// ClearBalances releases one owner's balance caches, or every owner's when
// address is empty.
func (s *ScannerService) ClearBalances(address string) {
	if address == "" {
		s.balanceCache.ClearAll()
		s.stateCache.ClearAll()
		return
	}
	s.balanceCache.ClearOwner(address)
	s.stateCache.ClearOwner(address)
}

func (s *ScannerService) fetchNative(ctx context.Context, address string, network entity.Network) (port.BalanceReading, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return port.BalanceReading{}, err
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	return s.reader.FetchNativeBalance(fetchCtx, address, network)
}

func (s *ScannerService) fetchToken(ctx context.Context, address string, network entity.Network, token entity.Token) (port.BalanceReading, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return port.BalanceReading{}, err
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	return s.reader.FetchTokenBalance(fetchCtx, address, network, token)
}

// newBalance builds an immutable Balance; the USD value is attached here or
// never.
func newBalance(symbol string, reading port.BalanceReading, decimals uint8, isNative bool, contract string, price float64, priced bool) entity.Balance {
	raw := "0"
	if reading.Raw != nil {
		raw = reading.Raw.String()
	}
	balance := entity.Balance{
		Symbol:          symbol,
		RawAmount:       raw,
		FormattedAmount: reading.Formatted,
		Decimals:        decimals,
		IsNative:        isNative,
		ContractAddress: contract,
	}
	if priced {
		value := utils.CalculateValueUSD(reading.Raw, decimals, price)
		balance.USDValue = &value
	}
	return balance
}
