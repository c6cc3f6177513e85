package features

import "errors"

// ErrUnknownSchema is returned by Lookup for an unregistered schema id.
var ErrUnknownSchema = errors.New("unknown feature schema")
