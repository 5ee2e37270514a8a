package domain

import "errors"

// ErrNotFound is wrapped by stores when the addressed item does not exist.
var ErrNotFound = errors.New("not found")
