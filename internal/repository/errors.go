package repository

import "errors"

// Generic storage-layer errors. Services translate these into the
// apperr taxonomy at the boundary.
var (
	ErrNotFound       = errors.New("repository: record not found")
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)
