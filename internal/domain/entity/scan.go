package entity

import "time"

// ScanOptions controls one ScanAddress call.
type ScanOptions struct {
	// ForceRefresh bypasses the balance cache entirely.
	ForceRefresh bool
	// Networks restricts the scan to the given network ids. Empty means all
	// configured networks.
	Networks []string
}

// RefreshDecision records which TTL the caching policy applied to one
// network during a scan and the balance state that drove the decision.
type RefreshDecision struct {
	NetworkID  string        `json:"networkId"`
	HadBalance bool          `json:"hadBalance"`
	TTLUsed    time.Duration `json:"ttlUsedMs"`
}

// ScanResult is the consolidated output of scanning one address. The
// provenance lists are part of the contract: clients distinguish networks
// served from cache from freshly scanned ones.
type ScanResult struct {
	Address           string            `json:"address"`
	Balances          []*NetworkBalance `json:"balances"`
	TotalUSDValue     float64           `json:"totalUsdValue"`
	CachedNetworkIDs  []string          `json:"cachedNetworkIds"`
	FetchedNetworkIDs []string          `json:"fetchedNetworkIds"`
	ErroredNetworkIDs []string          `json:"erroredNetworkIds"`
	RefreshStrategy   []RefreshDecision `json:"refreshStrategy"`
}

// PriceRequest asks for the USD spot price of one asset.
type PriceRequest struct {
	PriceID string `json:"priceId"`
	Symbol  string `json:"symbol"`
}

// PriceLookup is the outcome of a batch price resolution. Prices are keyed
// by the requested price id, not the resolved lookup key, so wrapped tokens
// map back to the caller's identifiers.
type PriceLookup struct {
	Prices     map[string]float64 `json:"prices"`
	CachedIDs  []string           `json:"cachedIds"`
	FetchedIDs []string           `json:"fetchedIds"`
	ErroredIDs []string           `json:"erroredIds"`
}
