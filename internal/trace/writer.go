package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hupe1980/segpool/internal/fs"
)

// Writer appends events to a trace stream.
type Writer struct {
	bw   *bufio.Writer
	comp io.WriteCloser
	file fs.File // set by Create

	events int
	closed bool
}

// NewWriter writes a trace to w with the given compression. Close flushes
// the stream but does not close w.
func NewWriter(w io.Writer, c Compression) (*Writer, error) {
	comp, err := compressWriter(w, c)
	if err != nil {
		return nil, err
	}
	return &Writer{
		bw:   bufio.NewWriter(comp),
		comp: comp,
	}, nil
}

// Create creates the file at path, choosing the compression from its
// extension.
func Create(path string) (*Writer, error) {
	return CreateFS(fs.Default, path)
}

// CreateFS is Create on the given file system.
func CreateFS(fsys fs.FileSystem, path string) (*Writer, error) {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	w, err := NewWriter(f, CompressionFromPath(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// Write appends one event.
func (w *Writer) Write(e Event) error {
	if w.closed {
		return os.ErrClosed
	}
	if e.Op != OpAlloc && e.Op != OpFree {
		return fmt.Errorf("trace: cannot write %v", e.Op)
	}
	if e.Size < 0 {
		return fmt.Errorf("trace: negative size %d", e.Size)
	}
	if _, err := w.bw.WriteString(e.String()); err != nil {
		return err
	}
	w.events++
	return w.bw.WriteByte('\n')
}

// Comment appends a comment line. Newlines in text start new comment lines.
func (w *Writer) Comment(text string) error {
	if w.closed {
		return os.ErrClosed
	}
	for _, line := range strings.Split(text, "\n") {
		if _, err := w.bw.WriteString("# " + line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Events returns the number of events written.
func (w *Writer) Events() int {
	return w.events
}

// Close flushes buffered events, finishes the compressed stream and closes
// the file when the writer was created with Create.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.bw.Flush()
	err = errors.Join(err, w.comp.Close())
	if w.file != nil {
		err = errors.Join(err, w.file.Sync(), w.file.Close())
	}
	return err
}
