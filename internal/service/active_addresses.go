package service

import (
	"sort"
	"strings"
	"sync"
)

// ActiveAddresses is the set of addresses the background sweeper considers
// under active observation. Addresses are registered whenever a scan is
// requested and must be unregistered when removed from tracking.
type ActiveAddresses struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// NewActiveAddresses creates an empty set.
func NewActiveAddresses() *ActiveAddresses {
	return &ActiveAddresses{set: make(map[string]struct{})}
}

// Register marks an address as active. Registration is idempotent.
func (a *ActiveAddresses) Register(address string) {
	key := strings.ToLower(address)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set[key] = struct{}{}
}

// Unregister removes an address from the active set so the sweeper stops
// re-warming its cache entries.
func (a *ActiveAddresses) Unregister(address string) {
	key := strings.ToLower(address)
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.set, key)
}

// List returns the active addresses in sorted order.
func (a *ActiveAddresses) List() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	addresses := make([]string, 0, len(a.set))
	for address := range a.set {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}
