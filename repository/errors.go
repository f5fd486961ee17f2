package repository

import "errors"

// Common repository errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrConcurrency  = errors.New("stored version does not match the version read at load time")
	ErrDuplicateKey = errors.New("duplicate key violation")
)
