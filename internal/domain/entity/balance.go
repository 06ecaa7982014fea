package entity

// ZeroAddress represents the EVM zero address, used as the contract address
// placeholder for native balances.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Balance is an immutable value object describing one asset position. The USD
// value is attached at construction time from a price lookup and left nil when
// no price was available; zero and unknown must stay distinguishable.
type Balance struct {
	Symbol          string   `json:"symbol" yaml:"symbol"`
	RawAmount       string   `json:"rawAmount" yaml:"rawAmount"`
	FormattedAmount string   `json:"formattedAmount" yaml:"formattedAmount"`
	Decimals        uint8    `json:"decimals" yaml:"decimals"`
	USDValue        *float64 `json:"usdValue,omitempty" yaml:"usdValue,omitempty"`
	IsNative        bool     `json:"isNative" yaml:"isNative"`
	ContractAddress string   `json:"contractAddress,omitempty" yaml:"contractAddress,omitempty"`
}

// NetworkBalance is the result of scanning one (address, network) pair. It is
// the unit cached by the scanner; exactly one of {fresh fetch, cached value,
// error} applies to an instance within a completed scan.
type NetworkBalance struct {
	NetworkID         string    `json:"networkId" yaml:"networkId"`
	NetworkName       string    `json:"networkName" yaml:"networkName"`
	NativeBalance     *Balance  `json:"nativeBalance,omitempty" yaml:"nativeBalance,omitempty"`
	TokenBalances     []Balance `json:"tokenBalances" yaml:"tokenBalances"`
	TotalUSDValue     float64   `json:"totalUsdValue" yaml:"totalUsdValue"`
	HasNonZeroBalance bool      `json:"hasNonZeroBalance" yaml:"hasNonZeroBalance"`
	FetchedAt         int64     `json:"fetchedAtEpochMs" yaml:"fetchedAtEpochMs"`
	Error             string    `json:"error,omitempty" yaml:"error,omitempty"`
}
