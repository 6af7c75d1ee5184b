package domain

import "errors"

var (
	// ErrValidation signals malformed caller input (blank query, bad limit, missing fields).
	ErrValidation = errors.New("validation failed")
	// ErrInvalidFilter signals a filter value that cannot be parsed into its typed form.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrVectorDimMismatch signals a vector whose length differs from the configured dimensions.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingUnavailable signals that the query embedding could not be produced.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")

	// ErrPersistence signals a storage failure. Details are logged, never returned to callers.
	ErrPersistence = errors.New("persistence error")
)

// IsClientError reports whether err is caused by caller input rather than a collaborator.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidFilter) ||
		errors.Is(err, ErrVectorDimMismatch)
}
