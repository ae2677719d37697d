// Package testutil provides testing utilities for segpool.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source for request sizes and helpers that
// stamp, verify and compare raw memory handed out by a pool.
//
// # Request Sizes
//
//	rng := testutil.NewRNG(seed)
//	sizes := rng.Sizes(1000, 256) // mostly small, some large
//
// # Memory Checks
//
//	testutil.Fill(b, tag)
//	ok := testutil.Verify(b, tag)
//	i, j, overlap := testutil.FindOverlap(spans)
package testutil
