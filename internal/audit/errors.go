package audit

import "errors"

// ErrInvalidInput is returned for an empty or malformed URL or a blank primary keyword.
var ErrInvalidInput = errors.New("invalid audit input")
