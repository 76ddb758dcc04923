package kmeans

import "errors"

// Errors returned by Engine. They are wrapped in a *errors.StructuredError
// carrying the operation and context; match them with errors.Is.
var (
	ErrInvalidClusterCount   = errors.New("kmeans: cluster count must be positive")
	ErrInvalidDimensionCount = errors.New("kmeans: dimension count must be positive")
	ErrInvalidOption         = errors.New("kmeans: invalid option")
	ErrNotInitialized        = errors.New("kmeans: engine not initialized")
	ErrAlreadyInitialized    = errors.New("kmeans: engine already initialized")
	ErrSamplingExhausted     = errors.New("kmeans: sample source cannot supply enough distinct vectors")
	ErrDimensionMismatch     = errors.New("kmeans: sample dimension mismatch")
)
