// Package registry keeps the runtime set of networks and their tracked
// tokens. Networks are seeded from config at startup and may be extended at
// runtime; duplicate ids are rejected.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"portfolio_tracker/internal/domain/entity"

	"go.uber.org/zap"
)

// NetworkRegistry is safe for concurrent use.
type NetworkRegistry struct {
	mu       sync.RWMutex
	networks map[string]entity.Network
	order    []string
	tokens   map[string][]entity.Token
	logger   *zap.Logger
}

// NewNetworkRegistry creates an empty registry.
func NewNetworkRegistry(logger *zap.Logger) *NetworkRegistry {
	return &NetworkRegistry{
		networks: make(map[string]entity.Network),
		tokens:   make(map[string][]entity.Token),
		logger:   logger.Named("NetworkRegistry"),
	}
}

// Register adds a network. A duplicate id is rejected.
func (r *NetworkRegistry) Register(network entity.Network) error {
	if network.ID == "" {
		return &entity.ValidationError{Field: "network.id", Message: "must not be empty"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.networks[network.ID]; exists {
		return fmt.Errorf("network %q is already registered", network.ID)
	}
	r.networks[network.ID] = network
	r.order = append(r.order, network.ID)
	r.logger.Info("Registered network", zap.String("networkId", network.ID), zap.Uint64("chainId", network.ChainID))
	return nil
}

// RegisterToken adds a token to a network. A token must be unique per
// (networkID, contractAddress) pair; contract comparison is case-insensitive.
func (r *NetworkRegistry) RegisterToken(networkID string, token entity.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.networks[networkID]; !exists {
		return &entity.NotFoundError{Kind: "network", ID: networkID}
	}
	for _, existing := range r.tokens[networkID] {
		if strings.EqualFold(existing.ContractAddress, token.ContractAddress) {
			return fmt.Errorf("token %s is already registered on network %q", token.ContractAddress, networkID)
		}
	}
	r.tokens[networkID] = append(r.tokens[networkID], token)
	r.logger.Info("Registered token",
		zap.String("networkId", networkID),
		zap.String("symbol", token.Symbol),
		zap.String("contract", token.ContractAddress),
		zap.Bool("custom", token.IsCustom))
	return nil
}

// Get returns the network for id.
func (r *NetworkRegistry) Get(id string) (entity.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	network, ok := r.networks[id]
	if !ok {
		return entity.Network{}, &entity.NotFoundError{Kind: "network", ID: id}
	}
	return network, nil
}

// All returns networks in registration order.
func (r *NetworkRegistry) All() []entity.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()
	networks := make([]entity.Network, 0, len(r.order))
	for _, id := range r.order {
		networks = append(networks, r.networks[id])
	}
	return networks
}

// TokensFor returns the tokens tracked on a network. Unknown networks yield
// an empty list.
func (r *NetworkRegistry) TokensFor(networkID string) []entity.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokens := make([]entity.Token, len(r.tokens[networkID]))
	copy(tokens, r.tokens[networkID])
	return tokens
}

// Resolve maps a list of network ids to networks, preserving order. An empty
// list resolves to all registered networks.
func (r *NetworkRegistry) Resolve(ids []string) ([]entity.Network, error) {
	if len(ids) == 0 {
		return r.All(), nil
	}
	networks := make([]entity.Network, 0, len(ids))
	for _, id := range ids {
		network, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		networks = append(networks, network)
	}
	return networks, nil
}
