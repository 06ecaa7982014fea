package service

import (
	"context"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ScanFailure reports one address whose scan could not start at all
// (validation failure, unknown network). Per-network errors stay inside the
// portfolio's NetworkBalances.
type ScanFailure struct {
	AddressID string `json:"addressId"`
	Address   string `json:"address"`
	Message   string `json:"message"`
}

// Coordinator drives the scanner across a set of tracked addresses. It is
// used by both the initial-load path and bulk rescans.
type Coordinator struct {
	logger      *zap.Logger
	scanner     port.BalanceScanner
	maxParallel int
	now         func() time.Time
}

// NewCoordinator creates a coordinator with a bounded concurrency limit.
func NewCoordinator(logger *zap.Logger, scanner port.BalanceScanner, maxParallel int) *Coordinator {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Coordinator{
		logger:      logger.Named("Coordinator"),
		scanner:     scanner,
		maxParallel: maxParallel,
		now:         time.Now,
	}
}

// ScanAll scans every address concurrently within the limit. Addresses are
// isolated owners in the balance cache, and one address's failure never
// aborts the others; failures come back as data.
func (c *Coordinator) ScanAll(ctx context.Context, addresses []entity.TrackedAddress, opts entity.ScanOptions) ([]entity.AddressPortfolio, []ScanFailure) {
	portfolios := make([]*entity.AddressPortfolio, len(addresses))
	failures := make([]*ScanFailure, len(addresses))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.maxParallel)
	for i, tracked := range addresses {
		i, tracked := i, tracked
		eg.Go(func() error {
			result, err := c.scanner.ScanAddress(egCtx, tracked.Address, opts)
			if err != nil {
				c.logger.Error("Address scan failed",
					zap.String("address", tracked.Address),
					zap.Error(err))
				failures[i] = &ScanFailure{AddressID: tracked.ID, Address: tracked.Address, Message: err.Error()}
				return nil
			}
			portfolios[i] = &entity.AddressPortfolio{
				AddressID:       tracked.ID,
				Address:         tracked.Address,
				Label:           tracked.Label,
				NetworkBalances: result.Balances,
				TotalUSDValue:   result.TotalUSDValue,
				LastScannedAt:   c.now().UnixMilli(),
			}
			return nil
		})
	}
	_ = eg.Wait()

	collected := make([]entity.AddressPortfolio, 0, len(addresses))
	var failed []ScanFailure
	for i := range addresses {
		if portfolios[i] != nil {
			collected = append(collected, *portfolios[i])
		}
		if failures[i] != nil {
			failed = append(failed, *failures[i])
		}
	}
	c.logger.Info("Bulk scan complete",
		zap.Int("requested", len(addresses)),
		zap.Int("succeeded", len(collected)),
		zap.Int("failed", len(failed)))
	return collected, failed
}
