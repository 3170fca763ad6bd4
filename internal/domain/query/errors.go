package query

import "errors"

// ErrInvalidSpec marks a filter or sort specification outside its declared
// domain. It is a caller-side programming error and is never retried.
var ErrInvalidSpec = errors.New("invalid query spec")
