package service

import (
	"context"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/registry"

	"go.uber.org/zap"
)

// RefreshSweeper proactively re-warms cache entries that are about to expire
// for actively observed addresses, trading background work for avoided
// latency spikes on the next user request. Already-expired entries are left
// to the lazy on-demand path; guessing future demand for them is not worth
// the fetch.
type RefreshSweeper struct {
	logger        *zap.Logger
	scanner       *ScannerService
	prices        port.PriceService
	registry      *registry.NetworkRegistry
	active        *ActiveAddresses
	interval      time.Duration
	refreshWindow time.Duration
	now           func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewRefreshSweeper wires the sweeper against the scanner's caches and the
// shared price service.
func NewRefreshSweeper(
	logger *zap.Logger,
	scanner *ScannerService,
	prices port.PriceService,
	networkRegistry *registry.NetworkRegistry,
	active *ActiveAddresses,
	interval, refreshWindow time.Duration,
) *RefreshSweeper {
	return &RefreshSweeper{
		logger:        logger.Named("RefreshSweeper"),
		scanner:       scanner,
		prices:        prices,
		registry:      networkRegistry,
		active:        active,
		interval:      interval,
		refreshWindow: refreshWindow,
		now:           scanner.now,
	}
}

// Start launches the periodic sweep loop. Stop terminates it.
func (s *RefreshSweeper) Start(ctx context.Context) {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("Refresh sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("refreshWindow", s.refreshWindow))
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *RefreshSweeper) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	s.done = nil
	s.logger.Info("Refresh sweeper stopped")
}

// Sweep runs one pass: for every active address and network, re-scan pairs
// whose cache entry is inside the refresh window (about to expire but not
// yet expired), then batch-refresh price entries in the same window.
func (s *RefreshSweeper) Sweep(ctx context.Context) {
	addresses := s.active.List()
	networks := s.registry.All()
	refreshed := 0

	for _, address := range addresses {
		for _, network := range networks {
			if !s.nearExpiry(address, network.ID) {
				continue
			}
			s.scanner.ScanNetwork(ctx, address, network)
			refreshed++
		}
	}

	expiringPrices := s.expiringPriceIDs()
	if len(expiringPrices) > 0 {
		if err := s.prices.Refresh(ctx, expiringPrices); err != nil {
			s.logger.Warn("Price refresh during sweep failed", zap.Error(err))
		}
	}

	if refreshed > 0 || len(expiringPrices) > 0 {
		s.logger.Debug("Sweep pass complete",
			zap.Int("activeAddresses", len(addresses)),
			zap.Int("balancesRefreshed", refreshed),
			zap.Int("pricesRefreshed", len(expiringPrices)))
	}
}

// nearExpiry reports whether the pair's cache entry is live and inside the
// refresh window under the TTL implied by the recorded balance state.
func (s *RefreshSweeper) nearExpiry(address, networkID string) bool {
	meta, ok := s.scanner.balanceCache.GetWithMetadata(address, networkID)
	if !ok {
		// expired entries are refreshed lazily on next demand
		return false
	}
	hadBalance := meta.Value.HasNonZeroBalance
	if state, stateOK := s.scanner.stateCache.Get(address, networkID); stateOK {
		hadBalance = state
	}
	ttl := s.scanner.determineTTL(hadBalance)
	remaining := ttl - s.now().Sub(meta.CreatedAt)
	return remaining > 0 && remaining <= s.refreshWindow
}

// expiringPriceIDs collects price cache keys inside the refresh window.
func (s *RefreshSweeper) expiringPriceIDs() []string {
	var ids []string
	for _, entry := range s.prices.Stats().Entries {
		remaining := entry.TTLMs - entry.AgeMs
		if remaining > 0 && remaining <= s.refreshWindow.Milliseconds() {
			ids = append(ids, entry.Key)
		}
	}
	return ids
}
