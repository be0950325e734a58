package engine

import (
	"sort"
	"strconv"

	"gitlab.com/esr/svndumpfilter3/internal/dumprecord"
	"gitlab.com/esr/svndumpfilter3/internal/externals"
	"gitlab.com/esr/svndumpfilter3/internal/logging"
	"gitlab.com/esr/svndumpfilter3/internal/pathfilter"
	"gitlab.com/esr/svndumpfilter3/internal/svnrepo"
)

// mightAffectExternals reports whether rec could change the svn:externals
// property of its path, grounded on
// original_source/svndumpmultitool/svndumpmultitool_cli.py's
// DoesNotAffectExternals (inverted): a delete can't carry a new value; a
// non-directory can't carry the property at all; and a change record
// with neither an explicit svn:externals entry nor Prop-delta=false tells
// us nothing without re-reading the property.
func mightAffectExternals(rec *dumprecord.Record) bool {
	if rec.NodeAction() == dumprecord.ActionDelete {
		return false
	}
	if rec.NodeKind() != dumprecord.KindDir {
		return false
	}
	if rec.Properties == nil {
		return false
	}
	if rec.Properties.Has("svn:externals") || rec.Properties.IsTombstoned("svn:externals") {
		return true
	}
	if rec.NodeAction() == dumprecord.ActionAdd || rec.NodeAction() == dumprecord.ActionReplace {
		// A fresh add/replace with no svn:externals entry has none.
		return false
	}
	propDelta, _ := rec.Headers.Get("Prop-delta")
	return propDelta != "true"
}

// internalizeExternals implements spec.md §4.5.4: every record that might
// have changed its path's svn:externals property is diffed against the
// prior revision's value, and the added/changed/deleted external
// definitions are materialized as ordinary add/change/delete records
// following the dump record that triggered them.
func internalizeExternals(records []*dumprecord.Record, revnum int, cfg Config, adapter svnrepo.Adapter) ([]*dumprecord.Record, error) {
	if cfg.ExternalsMap == nil {
		return records, nil
	}

	var out []*dumprecord.Record
	for _, rec := range records {
		out = append(out, rec)
		if !mightAffectExternals(rec) {
			continue
		}

		path := rec.Path()
		newVal, _ := rec.Properties.Get("svn:externals")

		newDescs, warnings := externals.Parse(cfg.Repo, revnum, path, newVal, cfg.ExternalsMap)
		for _, w := range warnings {
			logging.Warn("externals at %s: %v", path, w)
		}

		oldVal, err := adapter.GetExternalsProperty(cfg.Repo, revnum-1, path)
		if err != nil {
			return nil, err
		}
		oldDescs, warnings := externals.Parse(cfg.Repo, revnum-1, path, oldVal, cfg.ExternalsMap)
		for _, w := range warnings {
			logging.Warn("externals at %s: %v", path, w)
		}

		added, deleted, changed := externals.Diff(oldDescs, newDescs)

		for _, d := range deleted {
			del := dumprecord.NewRecord()
			del.Origin = dumprecord.OriginExternals
			del.Headers.Set("Node-path", path+"/"+d.DstPath)
			del.Headers.Set("Node-action", "delete")
			out = append(out, del)
		}

		for _, d := range added {
			recs, err := synthesizeExternalAdd(adapter, cfg.Repo, cfg.Filter, path, d)
			if err != nil {
				logging.Warn("externals add %s/%s: %v", path, d.DstPath, err)
				continue
			}
			out = append(out, recs...)
		}

		for _, pair := range changed {
			recs, err := synthesizeExternalChange(adapter, cfg.Repo, cfg.Filter, path, pair)
			if err != nil {
				logging.Warn("externals change %s/%s: %v", path, pair.New.DstPath, err)
				continue
			}
			out = append(out, recs...)
		}
	}
	return out, nil
}

// synthesizeExternalAdd brings an external definition into the main tree:
// a same-repo, INCLUDED source becomes a synthetic copy record the loader
// resolves on its own; anything else is materialized directly.
func synthesizeExternalAdd(adapter svnrepo.Adapter, repo string, filter *pathfilter.Filter, parentPath string, d *externals.Description) ([]*dumprecord.Record, error) {
	dst := parentPath + "/" + d.DstPath
	if d.SrcRepo == repo && filter.Check(d.SrcPath) == pathfilter.Included {
		rec := dumprecord.NewRecord()
		rec.Origin = dumprecord.OriginExternals
		rec.Headers.Set("Node-path", dst)
		rec.Headers.Set("Node-kind", "dir")
		rec.Headers.Set("Node-action", "add")
		rec.Headers.Set("Node-copyfrom-rev", strconv.Itoa(d.SrcRev))
		rec.Headers.Set("Node-copyfrom-path", d.SrcPath)
		return []*dumprecord.Record{rec}, nil
	}
	return adapter.MaterializeSubtree(repo, d.SrcRev, d.SrcPath, dst, dumprecord.OriginExternals)
}

// synthesizeExternalChange brings an external definition up to date. When
// the prior definition's revision is unknown, or the new definition now
// qualifies for the same-repo copy shortcut, the safest rewrite is
// delete-then-add; otherwise only the incremental diff between the two
// source trees is replayed.
func synthesizeExternalChange(adapter svnrepo.Adapter, repo string, filter *pathfilter.Filter, parentPath string, pair externals.ChangedPair) ([]*dumprecord.Record, error) {
	dst := parentPath + "/" + pair.New.DstPath
	if pair.Old.SrcRevIsHead || (pair.New.SrcRepo == repo && filter.Check(pair.New.SrcPath) == pathfilter.Included) {
		del := dumprecord.NewRecord()
		del.Origin = dumprecord.OriginExternals
		del.Headers.Set("Node-path", dst)
		del.Headers.Set("Node-action", "delete")
		addRecs, err := synthesizeExternalAdd(adapter, repo, filter, parentPath, pair.New)
		if err != nil {
			return nil, err
		}
		return append([]*dumprecord.Record{del}, addRecs...), nil
	}

	diff, err := adapter.DiffPaths(repo, pair.Old.SrcPath, pair.Old.SrcRev, pair.New.SrcPath, pair.New.SrcRev)
	if err != nil {
		return nil, err
	}

	rels := make([]string, 0, len(diff))
	for rel := range diff {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	var out []*dumprecord.Record
	for _, rel := range rels {
		entry := diff[rel]
		full := dst
		srcFull := pair.New.SrcPath
		if rel != "" {
			full = dst + "/" + rel
			srcFull = pair.New.SrcPath + "/" + rel
		}

		switch entry.ContentsOp {
		case svnrepo.ContentsDelete:
			rec := dumprecord.NewRecord()
			rec.Origin = dumprecord.OriginExternals
			rec.Headers.Set("Node-path", full)
			rec.Headers.Set("Node-action", "delete")
			out = append(out, rec)

		case svnrepo.ContentsAdd:
			recs, err := adapter.MaterializeSubtree(repo, pair.New.SrcRev, srcFull, full, dumprecord.OriginExternals)
			if err != nil {
				return nil, err
			}
			out = append(out, recs...)

		default:
			rec := dumprecord.NewRecord()
			rec.Origin = dumprecord.OriginExternals
			rec.Headers.Set("Node-path", full)
			rec.Headers.Set("Node-kind", "file")
			rec.Headers.Set("Node-action", "change")
			if entry.ContentsOp == svnrepo.ContentsModify {
				content, _, err := adapter.ReadFile(repo, pair.New.SrcRev, srcFull)
				if err != nil {
					return nil, err
				}
				rec.Text = content
				rec.HasText = true
			}
			if entry.PropsOp == svnrepo.PropsModify {
				props, err := adapter.ReadProperties(repo, pair.New.SrcRev, srcFull)
				if err != nil {
					return nil, err
				}
				rec.Properties = props
			}
			out = append(out, rec)
		}
	}
	return out, nil
}
