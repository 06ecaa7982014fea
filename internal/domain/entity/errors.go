package entity

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ValidationError reports a malformed input (address, network id). It is
// raised before any fetch attempt and its result is never cached.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NotFoundError reports a reference to an unknown network or token id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// UpstreamFetchError wraps a failure of an RPC or price provider call. It is
// caught at the narrowest scope (single token, network or price id) and
// degrades that unit to absent/errored instead of propagating.
type UpstreamFetchError struct {
	Resource string
	Err      error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("upstream fetch of %s failed: %v", e.Resource, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// ValidateAddress rejects anything that is not a well-formed EVM address.
func ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return &ValidationError{Field: "address", Message: fmt.Sprintf("%q is not a valid EVM address", address)}
	}
	return nil
}
