package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidWeights signals a weight vector that is off the simplex.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrInvalidQuery signals a malformed search or similarity request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrStaleResponse signals a response whose generation has been superseded.
	// It never reaches a user: controllers drop such responses.
	ErrStaleResponse = errors.New("stale response")
	// ErrRemoteUnavailable signals a failed remote lookup (network, status or decoding).
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexUnavailable signals that the vector index is missing or unreachable.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// StaleResponseError wraps ErrStaleResponse with both generations for diagnostics.
type StaleResponseError struct {
	Got     uint64
	Current uint64
}

func (e *StaleResponseError) Error() string {
	return fmt.Sprintf("%s: generation %d superseded by %d", ErrStaleResponse.Error(), e.Got, e.Current)
}

func (e *StaleResponseError) Unwrap() error { return ErrStaleResponse }

// NewStaleResponse creates a stale response error.
func NewStaleResponse(got, current uint64) error {
	return &StaleResponseError{Got: got, Current: current}
}
