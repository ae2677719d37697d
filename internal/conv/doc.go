// Package conv provides checked integer arithmetic for byte-size computations.
//
// The pool converts element counts into byte counts and byte counts into
// budget reservations. Both steps can overflow on hostile or buggy input, so
// they go through these helpers instead of bare multiplications and casts.
package conv
