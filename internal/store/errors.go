package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrBusy                = errors.New("busy")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
