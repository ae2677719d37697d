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

// maxLine bounds a single trace line.
const maxLine = 1 << 16

// Reader reads events from a trace stream.
type Reader struct {
	sc     *bufio.Scanner
	comp   io.ReadCloser
	file   fs.File // set by Open
	line   int
	closed bool
}

// NewReader reads a trace from r with the given compression. Close does not
// close r.
func NewReader(r io.Reader, c Compression) (*Reader, error) {
	comp, err := decompressReader(r, c)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(comp)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	return &Reader{sc: sc, comp: comp}, nil
}

// Open opens the trace at path, choosing the compression from its extension.
func Open(path string) (*Reader, error) {
	return OpenFS(fs.Default, path)
}

// OpenFS is Open on the given file system.
func OpenFS(fsys fs.FileSystem, path string) (*Reader, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	r, err := NewReader(f, CompressionFromPath(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// Next returns the next event, or io.EOF at the end of the trace. Blank
// lines and comments are skipped.
func (r *Reader) Next() (Event, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		e, err := parseEvent(text)
		if err != nil {
			return Event{}, &SyntaxError{Line: r.line, Text: text, err: err}
		}
		return e, nil
	}
	if err := r.sc.Err(); err != nil {
		return Event{}, fmt.Errorf("trace: line %d: %w", r.line+1, err)
	}
	return Event{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// ReadAll returns every remaining event.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}

// Close releases the decompressor and closes the file when the reader was
// created with Open.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.comp.Close()
	if r.file != nil {
		err = errors.Join(err, r.file.Close())
	}
	return err
}
