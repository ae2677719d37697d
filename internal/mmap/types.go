package mmap

import "errors"

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the requested mapping size is not positive.
	ErrInvalidSize = errors.New("mmap: invalid mapping size")
)
