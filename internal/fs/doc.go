// Package fs provides filesystem abstractions for testability and fault injection.
//
// Trace files are created and opened through a [FileSystem] so that tests
// can simulate I/O failures.
//
//   - [LocalFS]: Production implementation using the os package
//   - [FaultyFS]: Test utility that fails writes, syncs or closes
//
// Production code uses fs.Default:
//
//	f, err := fs.Default.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
//
// Tests inject a FaultyFS:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".trace", fs.Fault{FailAfterBytes: 1024})
package fs
