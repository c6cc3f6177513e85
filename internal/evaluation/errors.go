package evaluation

import "errors"

// ErrUnknownFormat is returned when a report format is not supported.
var ErrUnknownFormat = errors.New("unknown report format")
