// Package pathfilter implements the three-valued path-inclusion policy of
// spec.md §4.2: a filesystem path can be directly INCLUDED, only an
// ancestor of something included (PARENT_OF_INCLUDED, and must therefore
// survive as a propertyless placeholder), or wholly EXCLUDED.
//
// Grounded on cutter/repocutter.go's sift/expunge/getRegexMatcher (a
// two-valued "does any whole-path regex match" test), generalized to the
// three-valued, per-segment-anchored prefix matching that spec.md §4.2
// requires — a generalization driven by
// original_source/svndumpmultitool/svndumpmultitool_cli.py's PathFilter,
// which this distillation's spec.md is modeled on.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause
package pathfilter

import (
	"regexp"
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

// Verdict is the closed three-valued result of a path check.
type Verdict int

const (
	Excluded Verdict = iota
	ParentOfIncluded
	Included
)

func (v Verdict) String() string {
	switch v {
	case Included:
		return "INCLUDED"
	case ParentOfIncluded:
		return "PARENT_OF_INCLUDED"
	default:
		return "EXCLUDED"
	}
}

// pattern is one compiled --include pattern, its segments anchored
// individually (spec.md §4.2: "each segment is compiled as a regex
// anchored at both ends").
type pattern struct {
	raw      string
	segments []*regexp.Regexp
}

// Filter holds a set of include patterns and answers path checks against
// them. An empty pattern list means "include everything".
type Filter struct {
	patterns []pattern
}

// New compiles a Filter from a list of /-separated pattern strings.
func New(patterns []string) (*Filter, error) {
	f := &Filter{}
	for _, raw := range patterns {
		p := pattern{raw: raw}
		for _, seg := range splitPath(raw) {
			re, err := regexp.Compile("^(?:" + seg + ")$")
			if err != nil {
				return nil, err
			}
			p.segments = append(p.segments, re)
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

// splitPath normalizes a path and splits it into non-empty segments.
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Check applies the three-valued policy of spec.md §4.2 to path.
func (f *Filter) Check(path string) Verdict {
	v, _ := f.checkVerbose(path)
	return v
}

// ParentReasons reports, for a path that checks as PARENT_OF_INCLUDED,
// the raw patterns responsible — a diagnostic of why an empty directory
// placeholder survives; neither binary calls it. Order-preserving
// and deduplicated, mirroring surgeon/inner.go's orderedset idiom.
func (f *Filter) ParentReasons(path string) *linkedhashset.Set {
	_, reasons := f.checkVerbose(path)
	return reasons
}

func (f *Filter) checkVerbose(path string) (Verdict, *linkedhashset.Set) {
	reasons := linkedhashset.New()
	if len(f.patterns) == 0 {
		return Included, reasons
	}
	segs := splitPath(path)
	for _, p := range f.patterns {
		n := len(p.segments)
		if n > len(segs) {
			n = len(segs)
		}
		allMatch := true
		for i := 0; i < n; i++ {
			if !p.segments[i].MatchString(segs[i]) {
				allMatch = false
				break
			}
		}
		if !allMatch {
			continue
		}
		if len(segs) >= len(p.segments) {
			return Included, reasons // short-circuit: an outright winner
		}
		reasons.Add(p.raw)
	}
	if reasons.Size() > 0 {
		return ParentOfIncluded, reasons
	}
	return Excluded, reasons
}
