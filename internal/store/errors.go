package store

import "github.com/flatwithoutbrokerage/flatapi/internal/apperr"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = apperr.ErrNotFound
