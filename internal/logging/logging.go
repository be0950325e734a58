// Package logging provides the small leveled logger used by both
// svndumpfilter3 and svncutrevs.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause
package logging

import (
	"fmt"
	"os"
)

// Debug gates trace output; set by the -debug/--debug flag.
var Debug bool

// Quiet suppresses Warn output as well as progress batons.
var Quiet bool

var prog = "svndumpfilter3"

// SetProgname changes the program name used in messages (called by
// svncutrevs's main to get its own identity in error text).
func SetProgname(name string) {
	prog = name
}

// Croak reports a fatal condition and terminates the process.
// Used for malformed dumps, adapter failures, and unsupported
// action pairs (spec.md §7: all fatal).
func Croak(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, prog+": croaking, "+msg+"\n", args...)
	os.Exit(1)
}

// Warn reports a non-fatal condition: unknown externals syntax,
// unmappable URL, an externals add or change that cannot be synthesized
// (for instance a nonexistent source), or two copies landing on one path.
func Warn(msg string, args ...interface{}) {
	if Quiet {
		return
	}
	fmt.Fprintf(os.Stderr, prog+": warning, "+msg+"\n", args...)
}

// Trace emits a debug-only diagnostic, the same role repocutter's
// "<tag: ...>" fmt.Fprintf(os.Stderr, ...) calls played under its
// package-level debug flag.
func Trace(msg string, args ...interface{}) {
	if !Debug {
		return
	}
	fmt.Fprintf(os.Stderr, "<"+msg+">\n", args...)
}
