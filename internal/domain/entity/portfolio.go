package entity

// TrackedAddress is an externally supplied record identifying an address the
// user follows. The core never persists this list itself.
type TrackedAddress struct {
	ID          string `json:"id" yaml:"id"`
	Address     string `json:"address" yaml:"address"`
	ChainFamily string `json:"chainFamily" yaml:"chainFamily"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	AddedAt     int64  `json:"addedAt" yaml:"addedAt"`
}

// AddressPortfolio holds the balances of one tracked address across all
// scanned networks. It is rebuilt wholesale on every scan.
type AddressPortfolio struct {
	AddressID       string            `json:"addressId" yaml:"addressId"`
	Address         string            `json:"address" yaml:"address"`
	Label           string            `json:"label,omitempty" yaml:"label,omitempty"`
	NetworkBalances []*NetworkBalance `json:"networkBalances" yaml:"networkBalances"`
	TotalUSDValue   float64           `json:"totalUsdValue" yaml:"totalUsdValue"`
	LastScannedAt   int64             `json:"lastScannedAtEpochMs" yaml:"lastScannedAtEpochMs"`
}

// NetworkShare is one row of a network breakdown.
type NetworkShare struct {
	NetworkID   string  `json:"networkId" yaml:"networkId"`
	NetworkName string  `json:"networkName" yaml:"networkName"`
	USDValue    float64 `json:"usdValue" yaml:"usdValue"`
	Percentage  float64 `json:"percentage" yaml:"percentage"`
}

// AssetShare is one row of an asset breakdown, grouped by symbol across
// networks and addresses. Amount is the summed balance rendered at the
// asset's original decimals precision.
type AssetShare struct {
	Symbol          string  `json:"symbol" yaml:"symbol"`
	FormattedAmount string  `json:"formattedAmount" yaml:"formattedAmount"`
	Decimals        uint8   `json:"decimals" yaml:"decimals"`
	USDValue        float64 `json:"usdValue" yaml:"usdValue"`
	Percentage      float64 `json:"percentage" yaml:"percentage"`
}

// PortfolioSummary is a stateless aggregate over a set of address portfolios.
// It is never persisted; callers recompute it on demand.
type PortfolioSummary struct {
	TotalUSDValue    float64        `json:"totalUsdValue" yaml:"totalUsdValue"`
	NetworkBreakdown []NetworkShare `json:"networkBreakdown" yaml:"networkBreakdown"`
	AssetBreakdown   []AssetShare   `json:"assetBreakdown" yaml:"assetBreakdown"`
}
