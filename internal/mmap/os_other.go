//go:build !unix && !windows

package mmap

import "errors"

var errUnsupported = errors.New("mmap: anonymous mappings are not supported on this platform")

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return nil, nil, errUnsupported
}
