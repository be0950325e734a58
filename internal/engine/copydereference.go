package engine

import (
	"fmt"
	"sort"
	"strings"

	"gitlab.com/esr/svndumpfilter3/internal/dumprecord"
	"gitlab.com/esr/svndumpfilter3/internal/pathfilter"
	"gitlab.com/esr/svndumpfilter3/internal/svnrepo"
)

// dereferenceCopies implements spec.md §4.5.2. A copy whose source the
// destination filter verdict can't reach a loader-side is rewritten into
// synthesized add records pulled straight from the repository at the
// copy's source revision, grounded on cutter/repocutter.go's
// convertNodeMoveToAdd/emitNodeAddRecords.
func dereferenceCopies(records []*dumprecord.Record, filter *pathfilter.Filter, adapter svnrepo.Adapter, repo string) ([]*dumprecord.Record, error) {
	var out []*dumprecord.Record
	for _, rec := range records {
		srcPath, hasSrc := rec.CopyfromPath()
		srcRev, hasRev := rec.CopyfromRev()
		if !hasSrc || !hasRev {
			out = append(out, rec)
			continue
		}

		dstPath := rec.Path()
		srcVerdict := filter.Check(srcPath)
		dstVerdict := filter.Check(dstPath)

		if srcVerdict == pathfilter.Included {
			// The loader can resolve this copy on its own.
			out = append(out, rec)
			continue
		}
		if dstVerdict == pathfilter.ParentOfIncluded && srcPath == dstPath {
			out = append(out, rec)
			continue
		}

		if repo == "" {
			return nil, fmt.Errorf("copy of %s from %s@%d needs --repo to dereference", dstPath, srcPath, srcRev)
		}

		synthesized, err := synthesizeCopy(adapter, repo, filter, srcRev, srcPath, dstPath, dstVerdict)
		if err != nil {
			return nil, err
		}
		out = append(out, synthesized...)

		if rec.HasText {
			changeRec := rec.Clone()
			changeRec.StripCopyHeaders()
			changeRec.SetNodeAction(dumprecord.ActionChange)
			out = append(out, changeRec)
		}
	}
	return out, nil
}

// synthesizeCopy materializes the unreachable copy source as plain add
// records under dstPath. When dstPath itself is INCLUDED the whole
// subtree is pulled in; when it is only PARENT_OF_INCLUDED, each child is
// re-filtered individually so only the included slice of the subtree
// survives.
func synthesizeCopy(adapter svnrepo.Adapter, repo string, filter *pathfilter.Filter, srcRev int, srcPath, dstPath string, dstVerdict pathfilter.Verdict) ([]*dumprecord.Record, error) {
	if dstVerdict == pathfilter.Included {
		return adapter.MaterializeSubtree(repo, srcRev, srcPath, dstPath, dumprecord.OriginCopy)
	}

	entries, err := adapter.ListTree(repo, srcRev, srcPath)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	var out []*dumprecord.Record
	var materialized []string
	for _, e := range entries {
		full := dstPath
		if e.Path != "" {
			full = dstPath + "/" + e.Path
		}

		underMaterialized := false
		for _, m := range materialized {
			if full == m || strings.HasPrefix(full, m+"/") {
				underMaterialized = true
				break
			}
		}
		if underMaterialized {
			continue
		}

		switch filter.Check(full) {
		case pathfilter.Excluded:
			continue
		case pathfilter.ParentOfIncluded:
			placeholder := dumprecord.NewRecord()
			placeholder.Origin = dumprecord.OriginCopy
			placeholder.Headers.Set("Node-path", full)
			placeholder.Headers.Set("Node-kind", "dir")
			placeholder.Headers.Set("Node-action", "add")
			out = append(out, placeholder)
		case pathfilter.Included:
			srcFull := srcPath
			if e.Path != "" {
				srcFull = srcPath + "/" + e.Path
			}
			recs, err := adapter.MaterializeSubtree(repo, srcRev, srcFull, full, dumprecord.OriginCopy)
			if err != nil {
				return nil, err
			}
			out = append(out, recs...)
			materialized = append(materialized, full)
		}
	}
	return out, nil
}
