package domain

import "errors"

// Sentinel errors wrapped by repositories and services so handlers can map
// them to status codes without knowing the store.
var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
)
