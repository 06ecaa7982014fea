package service

import (
	"math/big"
	"sort"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/pkg/utils"
)

// Aggregate combines address portfolios into totals and breakdowns. It is
// pure and stateless; callers recompute summaries on demand.
func Aggregate(portfolios []entity.AddressPortfolio) entity.PortfolioSummary {
	summary := entity.PortfolioSummary{
		NetworkBreakdown: []entity.NetworkShare{},
		AssetBreakdown:   []entity.AssetShare{},
	}

	type networkAcc struct {
		name string
		usd  float64
	}
	type assetAcc struct {
		raw      *big.Int
		decimals uint8
		usd      float64
	}
	networks := make(map[string]*networkAcc)
	var networkOrder []string
	assets := make(map[string]*assetAcc)
	var assetOrder []string

	addAsset := func(balance entity.Balance) {
		acc, ok := assets[balance.Symbol]
		if !ok {
			acc = &assetAcc{raw: big.NewInt(0), decimals: balance.Decimals}
			assets[balance.Symbol] = acc
			assetOrder = append(assetOrder, balance.Symbol)
		}
		if amount, err := utils.ParseRawAmount(balance.RawAmount); err == nil {
			acc.raw.Add(acc.raw, amount)
		}
		if balance.USDValue != nil {
			acc.usd += *balance.USDValue
		}
	}

	for _, portfolio := range portfolios {
		summary.TotalUSDValue += portfolio.TotalUSDValue
		for _, nb := range portfolio.NetworkBalances {
			if nb == nil {
				continue
			}
			acc, ok := networks[nb.NetworkID]
			if !ok {
				acc = &networkAcc{name: nb.NetworkName}
				networks[nb.NetworkID] = acc
				networkOrder = append(networkOrder, nb.NetworkID)
			}
			acc.usd += nb.TotalUSDValue

			if nb.NativeBalance != nil {
				addAsset(*nb.NativeBalance)
			}
			for _, balance := range nb.TokenBalances {
				addAsset(balance)
			}
		}
	}

	percentage := func(usd float64) float64 {
		if summary.TotalUSDValue == 0 {
			return 0
		}
		return usd / summary.TotalUSDValue * 100
	}

	for _, id := range networkOrder {
		acc := networks[id]
		summary.NetworkBreakdown = append(summary.NetworkBreakdown, entity.NetworkShare{
			NetworkID:   id,
			NetworkName: acc.name,
			USDValue:    acc.usd,
			Percentage:  percentage(acc.usd),
		})
	}
	sort.SliceStable(summary.NetworkBreakdown, func(i, j int) bool {
		return summary.NetworkBreakdown[i].USDValue > summary.NetworkBreakdown[j].USDValue
	})

	for _, symbol := range assetOrder {
		acc := assets[symbol]
		summary.AssetBreakdown = append(summary.AssetBreakdown, entity.AssetShare{
			Symbol:          symbol,
			FormattedAmount: utils.FormatBigInt(acc.raw, acc.decimals),
			Decimals:        acc.decimals,
			USDValue:        acc.usd,
			Percentage:      percentage(acc.usd),
		})
	}
	sort.SliceStable(summary.AssetBreakdown, func(i, j int) bool {
		return summary.AssetBreakdown[i].USDValue > summary.AssetBreakdown[j].USDValue
	})

	return summary
}
