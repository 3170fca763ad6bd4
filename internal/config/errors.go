package config

import "errors"

// ErrLoadConfig wraps failures reading the YAML file or environment.
var ErrLoadConfig = errors.New("load config failed")

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// ErrUnknownStoreDriver is joined to ErrInvalidConfig when store_driver is
// neither memory nor sqlite.
var ErrUnknownStoreDriver = errors.New("unknown store driver")
