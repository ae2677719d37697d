// Package sizeclass implements the size-class registry and the per-class
// intrusive free lists of a segregated free-list pool.
//
// Classes form a singly linked, strictly ascending ladder that starts at an
// initial size and steps by a fixed increment (8, 12, 16, 20, ... by default).
// The ladder only grows. Each class owns a LIFO free list of cells of exactly
// its size; while a cell is free its first word holds the address of the next
// free cell.
//
// Lookup is either a linear scan from the head of the ladder or a direct index
// computed from the requested size. Both strategies always select the same
// class.
package sizeclass
