package export

import "errors"

// ErrUnsupportedFormat is returned for any format outside csv and json.
var ErrUnsupportedFormat = errors.New("unsupported export format")
