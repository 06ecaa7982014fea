package entity

// NativeToken describes the base-unit asset of a network (e.g. ETH on Ethereum).
type NativeToken struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
	PriceID  string `json:"priceId" yaml:"priceId"`
}

// Network is an immutable descriptor of a blockchain network. Instances are
// defined at process start from config and may be extended at runtime through
// the network registry.
type Network struct {
	ID               string      `json:"id" yaml:"id"`
	Name             string      `json:"name" yaml:"name"`
	ChainID          uint64      `json:"chainId" yaml:"chainId"`
	RPCEndpoint      string      `json:"rpcEndpoint" yaml:"rpcEndpoint"`
	Native           NativeToken `json:"nativeToken" yaml:"nativeToken"`
	MulticallAddress string      `json:"multicallAddress,omitempty" yaml:"multicallAddress,omitempty"`
}
