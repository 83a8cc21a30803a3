package model

import (
	"errors"
	"fmt"
)

// Processing failures fall into four classes. Transient and upstream
// failures are retryable; malformed input and invariant violations are
// fatal for the affected transaction.
var (
	// ErrTransientData marks on-chain data not yet available from the
	// node (trace or receipt not indexed). Recheck later.
	ErrTransientData = errors.New("transient data unavailable")

	// ErrMalformedInput marks undecodable call data or an unrecognized
	// order kind. The transaction can never be processed.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUpstream marks a collaborator connection failure. The whole
	// polling round is deferred rather than the single transaction.
	ErrUpstream = errors.New("upstream failure")

	// ErrInvariant marks an arithmetic result the domain forbids, e.g. a
	// negative fee. It signals a decoding or policy-ordering bug and is
	// never clamped.
	ErrInvariant = errors.New("arithmetic invariant violation")
)

// TransientDataError wraps err as retryable.
func TransientDataError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransientData, fmt.Sprintf(format, args...))
}

// MalformedInputError wraps err as fatal for the transaction.
func MalformedInputError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

// UpstreamError wraps err as a round-level failure.
func UpstreamError(err error) error {
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// InvariantError wraps err as a fatal arithmetic violation.
func InvariantError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether the transaction should be requeued.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientData) || errors.Is(err, ErrUpstream)
}
