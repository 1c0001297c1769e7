package store

import "errors"

// ErrNotFound is returned by Load when a key has never been saved.
var ErrNotFound = errors.New("not found")
