package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound  = errors.New("file not found")
	ErrMalformed = errors.New("malformed file")
)
