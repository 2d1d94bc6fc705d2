package errors

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrUnavailable = errors.New("unavailable")
	ErrNoIndex     = errors.New("vector index not initialized")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
