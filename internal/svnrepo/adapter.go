// Package svnrepo defines the narrow repository-adapter seam of spec.md
// §4.4 that the filter engine uses to synthesize add records for
// unreachable copy sources and internalized externals, plus an
// execAdapter backed by the real `svn`/`svnlook` command-line tools and
// a FakeAdapter for engine unit tests.
//
// Grounded on cutter/repocutter.go's captureFromProcess,
// emitNodeAddRecords and convertNodeMoveToAdd (subprocess-driven add-
// record synthesis from a checked-out subtree) and
// original_source/svndumpmultitool/svn_util.py's ExtractNodeKinds/Diff
// (the `svnlook tree`/`svn diff --summarize` invocations this adapter's
// execAdapter reproduces) and svndump.py's MakeRecordsFromPath (the
// depth-first add-record shape materialization produces).
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause
package svnrepo

import "gitlab.com/esr/svndumpfilter3/internal/dumprecord"

// TreeEntry is one path under a materialized or listed subtree.
type TreeEntry struct {
	Path string // relative to the path ListTree/MaterializeSubtree was given
	Kind dumprecord.Kind
}

// ContentsOp classifies how a path's file contents changed between two
// repository states (spec.md §4.4's diff_paths).
type ContentsOp int

const (
	ContentsNone ContentsOp = iota
	ContentsAdd
	ContentsModify
	ContentsDelete
)

// PropsOp classifies how a path's properties changed.
type PropsOp int

const (
	PropsNone PropsOp = iota
	PropsModify
)

// DiffEntry is one path's combined contents/properties change.
type DiffEntry struct {
	ContentsOp ContentsOp
	PropsOp    PropsOp
}

// Adapter is the complete seam between the filter engine and a concrete
// Subversion repository, narrow enough to fake in engine tests (spec.md
// §9: "the engine's tests never exec anything").
type Adapter interface {
	ListTree(repo string, rev int, path string) ([]TreeEntry, error)
	ReadFile(repo string, rev int, path string) (content []byte, md5hex string, err error)
	ReadProperties(repo string, rev int, path string) (*dumprecord.Properties, error)
	MaterializeSubtree(repo string, rev int, srcPath, dstPath string, origin dumprecord.Origin) ([]*dumprecord.Record, error)
	DiffPaths(repo string, oldPath string, oldRev int, newPath string, newRev int) (map[string]DiffEntry, error)
	GetExternalsProperty(repo string, rev int, path string) (string, error)
	SourceExists(repo string, rev int, path string) (bool, error)
}

// genericMaterialize implements MaterializeSubtree purely in terms of
// the other three read operations, so both execAdapter and FakeAdapter
// share one depth-first traversal, grounded on svndump.py's
// MakeRecordsFromPath.
func genericMaterialize(a Adapter, repo string, rev int, srcPath, dstPath string, origin dumprecord.Origin) ([]*dumprecord.Record, error) {
	entries, err := a.ListTree(repo, rev, srcPath)
	if err != nil {
		return nil, err
	}
	out := make([]*dumprecord.Record, 0, len(entries))
	for _, e := range entries {
		nodePath := dstPath
		srcFull := srcPath
		if e.Path != "" {
			nodePath = dstPath + "/" + e.Path
			srcFull = srcPath + "/" + e.Path
		}
		props, err := a.ReadProperties(repo, rev, srcFull)
		if err != nil {
			return nil, err
		}
		rec := dumprecord.NewRecord()
		rec.Origin = origin
		rec.Headers.Set("Node-path", nodePath)
		rec.Headers.Set("Node-action", "add")
		rec.Properties = props
		if e.Kind == dumprecord.KindDir {
			rec.Headers.Set("Node-kind", "dir")
		} else {
			rec.Headers.Set("Node-kind", "file")
			content, _, err := a.ReadFile(repo, rev, srcFull)
			if err != nil {
				return nil, err
			}
			rec.Text = content
			rec.HasText = true
		}
		out = append(out, rec)
	}
	return out, nil
}
