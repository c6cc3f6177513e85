package service

import "errors"

// Sentinel errors for this package.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrUnknownScorer = errors.New("unknown scorer")
	ErrLoadArtifacts = errors.New("load artifacts failed")
)
