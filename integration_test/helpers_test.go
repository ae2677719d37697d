package integration_test

import (
	"io"
	"strings"
	"unsafe"
)

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

func unsafePointer[T any](p *T) unsafe.Pointer {
	return unsafe.Pointer(p)
}
