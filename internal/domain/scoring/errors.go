package scoring

import "errors"

// Sentinel error kinds for this package.
var (
	ErrSchemaMismatch      = errors.New("feature schema mismatch")
	ErrMalformedModel      = errors.New("malformed tree model")
	ErrCoefficientMismatch = errors.New("coefficient table does not match schema")
	ErrNonFinitePrediction = errors.New("non-finite prediction")
)
