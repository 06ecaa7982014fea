package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/cache/ttlcache"
	"portfolio_tracker/internal/config"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/pkg/metrics"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var defaultStablecoins = []string{"USDC", "USDT", "DAI", "USDC.E", "USDT.E", "DAI.E", "USDBC"}

var defaultWrappedTokens = map[string]string{
	"WETH":   "ethereum",
	"WBTC":   "bitcoin",
	"WBNB":   "binancecoin",
	"WMATIC": "matic-network",
	"WAVAX":  "avalanche-2",
}

// priceServiceImpl implements port.PriceService on top of a single global
// go-cache instance keyed by resolved price id.
type priceServiceImpl struct {
	logger      *zap.Logger
	reader      port.PriceReader
	prices      *cache.Cache
	ttl         time.Duration
	stablecoins map[string]struct{}
	wrapped     map[string]string
	hits        atomic.Uint64
	misses      atomic.Uint64
	now         func() time.Time
}

// NewPriceService creates a price cache service. Stablecoin and wrapped-token
// sets come from config, falling back to the built-in defaults.
func NewPriceService(logger *zap.Logger, cfg config.PriceServiceConfig, priceTTL time.Duration, reader port.PriceReader) port.PriceService {
	stableList := cfg.Stablecoins
	if len(stableList) == 0 {
		stableList = defaultStablecoins
	}
	stablecoins := make(map[string]struct{}, len(stableList))
	for _, symbol := range stableList {
		stablecoins[strings.ToUpper(symbol)] = struct{}{}
	}

	wrapped := make(map[string]string)
	for symbol, priceID := range defaultWrappedTokens {
		wrapped[symbol] = priceID
	}
	for symbol, priceID := range cfg.WrappedTokens {
		wrapped[strings.ToUpper(symbol)] = priceID
	}

	return &priceServiceImpl{
		logger:      logger.Named("PriceService"),
		reader:      reader,
		prices:      cache.New(priceTTL, 2*priceTTL),
		ttl:         priceTTL,
		stablecoins: stablecoins,
		wrapped:     wrapped,
		now:         time.Now,
	}
}

func (s *priceServiceImpl) isStablecoin(symbol string) bool {
	_, ok := s.stablecoins[strings.ToUpper(symbol)]
	return ok
}

// resolveKey substitutes a wrapped token's lookup key with its underlying
// asset's price id (e.g. WETH resolves to "ethereum").
func (s *priceServiceImpl) resolveKey(priceID, symbol string) string {
	if underlying, ok := s.wrapped[strings.ToUpper(symbol)]; ok {
		return underlying
	}
	return priceID
}

// GetPrice implements port.PriceService.
func (s *priceServiceImpl) GetPrice(ctx context.Context, priceID, symbol string) (float64, bool) {
	if s.isStablecoin(symbol) {
		return 1.0, true
	}
	key := s.resolveKey(priceID, symbol)
	if key == "" {
		return 0, false
	}
	if cached, found := s.prices.Get(key); found {
		if price, ok := cached.(float64); ok {
			s.hits.Add(1)
			metrics.CacheHits.WithLabelValues("prices").Inc()
			return price, true
		}
	}
	s.misses.Add(1)
	metrics.CacheMisses.WithLabelValues("prices").Inc()

	price, found, err := s.reader.FetchPrice(ctx, key)
	if err != nil {
		s.logger.Warn("Price fetch failed", zap.String("priceId", key), zap.Error(err))
		metrics.UpstreamErrors.WithLabelValues("price").Inc()
		return 0, false
	}
	if !found {
		s.logger.Debug("Price not available upstream", zap.String("priceId", key))
		return 0, false
	}
	s.prices.Set(key, price, cache.DefaultExpiration)
	return price, true
}

// GetPrices implements port.PriceService. All cache-miss, non-stablecoin ids
// are batched into a single upstream call; identical resolved keys are
// fetched once and fanned back out to every requested id.
func (s *priceServiceImpl) GetPrices(ctx context.Context, requests []entity.PriceRequest) entity.PriceLookup {
	lookup := entity.PriceLookup{
		Prices:     make(map[string]float64, len(requests)),
		CachedIDs:  []string{},
		FetchedIDs: []string{},
		ErroredIDs: []string{},
	}

	// resolved lookup key -> requested price ids waiting on it
	missing := make(map[string][]string)
	var missingOrder []string

	for _, req := range requests {
		if s.isStablecoin(req.Symbol) {
			lookup.Prices[req.PriceID] = 1.0
			continue
		}
		key := s.resolveKey(req.PriceID, req.Symbol)
		if key == "" {
			// asset without a price identity stays unpriced, which is an
			// expected outcome rather than an error
			continue
		}
		if cached, found := s.prices.Get(key); found {
			if price, ok := cached.(float64); ok {
				s.hits.Add(1)
				metrics.CacheHits.WithLabelValues("prices").Inc()
				lookup.Prices[req.PriceID] = price
				lookup.CachedIDs = append(lookup.CachedIDs, req.PriceID)
				continue
			}
		}
		s.misses.Add(1)
		metrics.CacheMisses.WithLabelValues("prices").Inc()
		if _, seen := missing[key]; !seen {
			missingOrder = append(missingOrder, key)
		}
		missing[key] = append(missing[key], req.PriceID)
	}

	if len(missingOrder) == 0 {
		return lookup
	}

	fetched, err := s.reader.FetchPricesBatch(ctx, missingOrder)
	if err != nil {
		s.logger.Warn("Batch price fetch failed", zap.Int("idCount", len(missingOrder)), zap.Error(err))
		metrics.UpstreamErrors.WithLabelValues("price").Inc()
		for _, key := range missingOrder {
			lookup.ErroredIDs = append(lookup.ErroredIDs, missing[key]...)
		}
		return lookup
	}

	for _, key := range missingOrder {
		price, found := fetched[key]
		if !found {
			// absent from the upstream response is an errored id, never a
			// silent drop
			lookup.ErroredIDs = append(lookup.ErroredIDs, missing[key]...)
			continue
		}
		s.prices.Set(key, price, cache.DefaultExpiration)
		for _, requestedID := range missing[key] {
			lookup.Prices[requestedID] = price
			lookup.FetchedIDs = append(lookup.FetchedIDs, requestedID)
		}
	}
	return lookup
}

// Refresh implements port.PriceService.
func (s *priceServiceImpl) Refresh(ctx context.Context, priceIDs []string) error {
	if len(priceIDs) == 0 {
		return nil
	}
	fetched, err := s.reader.FetchPricesBatch(ctx, priceIDs)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("price").Inc()
		return fmt.Errorf("failed to refresh %d price ids: %w", len(priceIDs), err)
	}
	for _, id := range priceIDs {
		price, found := fetched[id]
		if !found {
			s.logger.Warn("Price id missing from refresh response", zap.String("priceId", id))
			continue
		}
		s.prices.Set(id, price, cache.DefaultExpiration)
	}
	s.logger.Debug("Refreshed price cache", zap.Int("requested", len(priceIDs)), zap.Int("updated", len(fetched)))
	return nil
}

// Clear implements port.PriceService.
func (s *priceServiceImpl) Clear() {
	s.prices.Flush()
	s.hits.Store(0)
	s.misses.Store(0)
}

// Stats implements port.PriceService. Every entry is written with the
// service's single default TTL, so the creation time is recoverable from the
// stored expiration.
func (s *priceServiceImpl) Stats() ttlcache.Stats {
	items := s.prices.Items()
	now := s.now()
	stats := ttlcache.Stats{
		Size:    len(items),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Entries: make([]ttlcache.EntryStat, 0, len(items)),
	}
	for key, item := range items {
		createdAt := time.Unix(0, item.Expiration).Add(-s.ttl)
		stats.Entries = append(stats.Entries, ttlcache.EntryStat{
			Key:   key,
			AgeMs: now.Sub(createdAt).Milliseconds(),
			TTLMs: s.ttl.Milliseconds(),
		})
	}
	return stats
}
