package terminology

import "errors"

var (
	ErrUnauthenticated = errors.New("terminology: unauthenticated")
	ErrUnauthorized    = errors.New("terminology: unauthorized")
	ErrInvalidRequest  = errors.New("terminology: invalid request")
	ErrNotFound        = errors.New("terminology: not found")
	ErrVersionConflict = errors.New("terminology: version conflict")
	ErrInternal        = errors.New("terminology: internal error")
)
