// Package flatten implements the action-compatibility matrix of spec.md
// §4.6: within one output revision, two or more records can legally land
// on the same Node-path (a copy-dereference add followed by the original
// record's trailing change, an externals delete followed immediately by
// a re-add, ...). Flatten collapses each such run down to the single
// record (or reordered pair) a loader can actually apply, erroring out on
// any pairing the format cannot express.
//
// Grounded on spec.md's own design note ("encode as an exhaustive match
// over the nine representable (firstAction, secondAction) pairs"); no
// direct teacher analogue exists (repocutter never merges overlapping
// node actions within a revision), so the shape here follows
// reposurgeon's general preference for a closed sum-typed NodeAction
// (surgeon/svnread.go) switched on exhaustively rather than ad hoc
// boolean flag combinations.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause
package flatten

import (
	"fmt"

	"gitlab.com/esr/svndumpfilter3/internal/dumprecord"
	"gitlab.com/esr/svndumpfilter3/internal/logging"
)

// Flatten groups records by Node-path (preserving first-seen path order)
// and collapses each group's records pairwise, left to right, until one
// (or the reordered two of the EXTERNALS/DUMP exception) remains.
func Flatten(records []*dumprecord.Record) ([]*dumprecord.Record, error) {
	var order []string
	groups := map[string][]*dumprecord.Record{}
	for _, rec := range records {
		p := rec.Path()
		if _, seen := groups[p]; !seen {
			order = append(order, p)
		}
		groups[p] = append(groups[p], rec)
	}

	var out []*dumprecord.Record
	for _, p := range order {
		group := groups[p]
		for len(group) > 1 {
			merged, err := collapse(group[0], group[1])
			if err != nil {
				return nil, fmt.Errorf("flatten %s: %w", p, err)
			}
			if len(merged) == 2 {
				// The EXTERNALS/DUMP reorder: the delete is final and is not
				// collapsed again with the add that now follows it.
				out = append(out, merged[0])
				group = append(merged[1:], group[2:]...)
				continue
			}
			group = append(merged, group[2:]...)
		}
		out = append(out, group...)
	}
	return out, nil
}

// collapse merges the first two records of a same-path run into zero, one
// or two replacement records per the §4.6 matrix. A nil, nil result means
// "both cancel out and vanish" (delete immediately followed by a
// re-add-then-delete situation never arises; this is the add-then-delete
// cancellation).
func collapse(first, second *dumprecord.Record) ([]*dumprecord.Record, error) {
	fa, sa := first.NodeAction(), second.NodeAction()
	switch fa {
	case dumprecord.ActionDelete:
		if sa == dumprecord.ActionAdd {
			merged := second.Clone()
			merged.SetNodeAction(dumprecord.ActionReplace)
			return []*dumprecord.Record{merged}, nil
		}
		return nil, fmt.Errorf("unsupported action pair delete/%s", sa)

	case dumprecord.ActionAdd:
		switch sa {
		case dumprecord.ActionDelete:
			if first.Origin == dumprecord.OriginExternals && second.Origin == dumprecord.OriginDump {
				// An externals add is being superseded by the real dump
				// record's own delete of the same path: the delete must
				// precede the add for a loader to accept it.
				return []*dumprecord.Record{second, first}, nil
			}
			return nil, nil
		case dumprecord.ActionAdd:
			logging.Warn("two copies land on %s in the same revision, keeping the second", second.Path())
			return []*dumprecord.Record{second}, nil
		case dumprecord.ActionChange:
			merged, err := mergeChange(first, second)
			if err != nil {
				return nil, err
			}
			return []*dumprecord.Record{merged}, nil
		default:
			return nil, fmt.Errorf("unsupported action pair add/%s", sa)
		}

	case dumprecord.ActionChange:
		if sa == dumprecord.ActionChange {
			merged, err := mergeChange(first, second)
			if err != nil {
				return nil, err
			}
			return []*dumprecord.Record{merged}, nil
		}
		return nil, fmt.Errorf("unsupported action pair change/%s", sa)

	case dumprecord.ActionReplace:
		if sa == dumprecord.ActionChange {
			merged, err := mergeChange(first, second)
			if err != nil {
				return nil, err
			}
			return []*dumprecord.Record{merged}, nil
		}
		return nil, fmt.Errorf("unsupported action pair replace/%s", sa)

	default:
		return nil, fmt.Errorf("unsupported action pair %s/%s", fa, sa)
	}
}

// mergeChange folds a trailing change record onto whatever precedes it
// (an add, a replace, or an earlier change), keeping first's action.
func mergeChange(first, second *dumprecord.Record) (*dumprecord.Record, error) {
	merged := first.Clone()

	if second.HasText {
		if delta, _ := second.Headers.Get("Text-delta"); delta == "true" {
			return nil, fmt.Errorf("cannot merge a delta change onto synthesized content at %s", second.Path())
		}
		merged.Text = append([]byte(nil), second.Text...)
		merged.HasText = true
		if md5sum, ok := second.Headers.Get("Text-content-md5"); ok {
			merged.Headers.Set("Text-content-md5", md5sum)
		} else {
			merged.Headers.Delete("Text-content-md5")
		}
		merged.Headers.Delete("Text-delta")
	}

	if second.Properties != nil {
		switch {
		case merged.Properties == nil:
			merged.Properties = second.Properties.Clone()
		default:
			propDelta, _ := second.Headers.Get("Prop-delta")
			if propDelta != "true" {
				merged.Properties = second.Properties.Clone()
				break
			}
			firstPropDelta, _ := merged.Headers.Get("Prop-delta")
			for _, k := range second.Properties.Keys() {
				if second.Properties.IsTombstoned(k) {
					if firstPropDelta == "true" {
						merged.Properties.Delete(k)
					} else {
						merged.Properties.Remove(k)
					}
					continue
				}
				v, _ := second.Properties.Get(k)
				merged.Properties.Set(k, v)
			}
		}
	}

	return merged, nil
}
