package storage

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row visible to the caller.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("storage: duplicate key")
)

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }
