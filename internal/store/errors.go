package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a key or public ID is already taken.
var ErrConflict = errors.New("conflict")

// ErrPersistence wraps a failed write. The in-memory state has already been
// updated when it is returned, so callers may log it and carry on.
var ErrPersistence = errors.New("persistence failed")
