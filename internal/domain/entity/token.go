package entity

// Token describes a fungible token tracked on a network. A token is unique
// per (networkID, contractAddress) pair; uniqueness is enforced by the
// network registry, not here.
type Token struct {
	Symbol          string `json:"symbol" yaml:"symbol"`
	ContractAddress string `json:"contractAddress" yaml:"contractAddress"`
	Decimals        uint8  `json:"decimals" yaml:"decimals"`
	PriceID         string `json:"priceId,omitempty" yaml:"priceId,omitempty"`
	IsCustom        bool   `json:"isCustom,omitempty" yaml:"isCustom,omitempty"`
}
