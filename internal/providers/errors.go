package providers

import (
	"errors"
	"fmt"
)

// ErrCredentialMissing marks an adapter whose credential could not be
// resolved from either the explicit config or an integration record.
// Such adapters are silently excluded from routing.
var ErrCredentialMissing = errors.New("provider credential missing")

// ProviderError wraps any failure of a single completion attempt:
// absent credentials, a non-success upstream status, or an
// empty/malformed response body.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError for the given backend.
func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
