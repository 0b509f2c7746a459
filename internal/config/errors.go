package config

import "errors"

// ErrConfigLoadFailed indicates the config file could not be loaded or parsed.
var ErrConfigLoadFailed = errors.New("config load failed")
