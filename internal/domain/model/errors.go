package model

import "errors"

// ErrInvalidCase marks a case record that cannot be decoded.
var ErrInvalidCase = errors.New("invalid case")
