// Package trace reads, writes, generates and replays allocation traces.
//
// A trace is a text file with one event per line:
//
//	# comment
//	a <id> <size>   allocate size bytes and bind the result to id
//	f <id>          free the allocation bound to id
//
// Files ending in .zst are zstd compressed and files ending in .lz4 are LZ4
// frame compressed. Replaying a trace drives a pool with the recorded
// requests and, optionally, stamps every allocation with a pattern derived
// from its id so that overlapping cells are detected on free.
package trace
