// Package filesystem implements the low-level filesystem adapter (C4 in the
// design): listing, stating, hashing, and atomically copying, moving, and
// touching files. It is the only package in this module that performs raw
// I/O against the trees being synchronized; everything above it deals in
// relative paths and the FileStat/Entry abstractions defined here and in
// pkg/synchronization/core/history.
//
// Individual file errors (a vanished file, a permission error on one stat)
// are swallowed by List, which omits the entry rather than failing the whole
// walk, matching spec.md §4.1's failure semantics. Every
// other error is returned to the caller together with the offending path.
package filesystem
