// Package revrange implements the comma-separated, colon-ranged revision
// selection syntax behind svncutrevs's positional argument (svndumpfilter3
// does not use it). It is a direct generalization of
// cutter/repocutter.go's SubversionRange.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause
package revrange

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Range represents a polyrange of Subversion revision numbers, e.g.
// "5,7-9,12" spelled with colons instead of dashes for pairs ("7:9"), plus
// the special bound HEAD.
type Range struct {
	intervals [][2]int
}

// Parse builds a Range from a textual specification. It panics-free;
// malformed input is reported through the error return so callers can
// choose fatal (CLI) vs recoverable (tests) handling.
func Parse(txt string) (Range, error) {
	var r Range
	var upperbound int
	for _, item := range strings.Split(txt, ",") {
		var parts [2]int
		if strings.Contains(item, "-") {
			return Range{}, fmt.Errorf("use ':' for version ranges instead of '-'")
		}
		if strings.Contains(item, ":") {
			fields := strings.SplitN(item, ":", 2)
			if fields[0] == "HEAD" {
				return Range{}, fmt.Errorf("can't accept HEAD as lower bound of a range")
			}
			lo, err := strconv.Atoi(fields[0])
			if err != nil {
				return Range{}, fmt.Errorf("ill-formed range specification %q", item)
			}
			parts[0] = lo
			if fields[1] == "HEAD" {
				parts[1] = math.MaxInt32
			} else {
				hi, err := strconv.Atoi(fields[1])
				if err != nil {
					return Range{}, fmt.Errorf("ill-formed range specification %q", item)
				}
				parts[1] = hi
			}
		} else {
			v, err := strconv.Atoi(item)
			if err != nil {
				return Range{}, fmt.Errorf("ill-formed range specification %q", item)
			}
			parts[0], parts[1] = v, v
		}
		if parts[0] < upperbound {
			return Range{}, fmt.Errorf("ill-formed range specification: intervals must be ascending")
		}
		upperbound = parts[0]
		r.intervals = append(r.intervals, parts)
	}
	return r, nil
}

// MustParse is Parse but fatal on error; used for flag defaults known to
// be well-formed at compile time.
func MustParse(txt string) Range {
	r, err := Parse(txt)
	if err != nil {
		panic(err)
	}
	return r
}

// Contains reports whether rev falls in any interval of the range.
func (r Range) Contains(rev int) bool {
	for _, interval := range r.intervals {
		if rev >= interval[0] && rev <= interval[1] {
			return true
		}
	}
	return false
}

// Upperbound returns the uppermost revision the range can match.
func (r Range) Upperbound() int {
	upper := 0
	for _, interval := range r.intervals {
		if interval[1] > upper {
			upper = interval[1]
		}
	}
	return upper
}

// All is the default "entire history" range.
func All() Range {
	return MustParse("0:HEAD")
}
