package svnrepo

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"gitlab.com/esr/svndumpfilter3/internal/dumprecord"
)

// FakeNode is one path's state in a FakeAdapter snapshot.
type FakeNode struct {
	Kind    dumprecord.Kind
	Content []byte
	Props   map[string]string
}

// FakeAdapter is an in-memory Adapter for engine tests, grounded on
// spec.md §9's explicit design note that the adapter interface must be
// narrow enough to fake and that the engine's tests never exec anything.
// Each repo carries a set of revision snapshots; a read at revision r
// uses the latest snapshot at or before r, mirroring how an unchanged
// path in a real repository persists across revisions without a new
// commit touching it.
type FakeAdapter struct {
	revisions map[string]map[int]map[string]FakeNode
}

// NewFakeAdapter returns an empty FakeAdapter.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{revisions: map[string]map[int]map[string]FakeNode{}}
}

// SetSnapshot installs the full filesystem state of repo at rev. nodes is
// keyed by full path (no leading slash); the repo root is "".
func (f *FakeAdapter) SetSnapshot(repo string, rev int, nodes map[string]FakeNode) {
	if f.revisions[repo] == nil {
		f.revisions[repo] = map[int]map[string]FakeNode{}
	}
	f.revisions[repo][rev] = nodes
}

func (f *FakeAdapter) snapshotAt(repo string, rev int) (map[string]FakeNode, bool) {
	revs, ok := f.revisions[repo]
	if !ok {
		return nil, false
	}
	best := -1
	for r := range revs {
		if r <= rev && r > best {
			best = r
		}
	}
	if best < 0 {
		return nil, false
	}
	return revs[best], true
}

func relativize(full, base string) (string, bool) {
	if full == base {
		return "", true
	}
	if base == "" {
		return strings.TrimPrefix(full, "/"), true
	}
	if strings.HasPrefix(full, base+"/") {
		return full[len(base)+1:], true
	}
	return "", false
}

func (f *FakeAdapter) ListTree(repo string, rev int, path string) ([]TreeEntry, error) {
	snap, ok := f.snapshotAt(repo, rev)
	if !ok {
		return nil, fmt.Errorf("fake adapter: no snapshot for %s@%d", repo, rev)
	}
	var out []TreeEntry
	for p, node := range snap {
		rel, match := relativize(p, path)
		if !match {
			continue
		}
		out = append(out, TreeEntry{Path: rel, Kind: node.Kind})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("fake adapter: no such path %s@%d:%s", repo, rev, path)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *FakeAdapter) ReadFile(repo string, rev int, path string) ([]byte, string, error) {
	snap, ok := f.snapshotAt(repo, rev)
	if !ok {
		return nil, "", fmt.Errorf("fake adapter: no snapshot for %s@%d", repo, rev)
	}
	node, ok := snap[path]
	if !ok || node.Kind != dumprecord.KindFile {
		return nil, "", fmt.Errorf("fake adapter: no such file %s@%d:%s", repo, rev, path)
	}
	sum := md5.Sum(node.Content)
	return node.Content, hex.EncodeToString(sum[:]), nil
}

func (f *FakeAdapter) ReadProperties(repo string, rev int, path string) (*dumprecord.Properties, error) {
	snap, ok := f.snapshotAt(repo, rev)
	if !ok {
		return nil, fmt.Errorf("fake adapter: no snapshot for %s@%d", repo, rev)
	}
	node, ok := snap[path]
	if !ok {
		return nil, fmt.Errorf("fake adapter: no such path %s@%d:%s", repo, rev, path)
	}
	props := dumprecord.NewProperties()
	keys := make([]string, 0, len(node.Props))
	for k := range node.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		props.Set(k, node.Props[k])
	}
	return props, nil
}

func (f *FakeAdapter) MaterializeSubtree(repo string, rev int, srcPath, dstPath string, origin dumprecord.Origin) ([]*dumprecord.Record, error) {
	return genericMaterialize(f, repo, rev, srcPath, dstPath, origin)
}

func (f *FakeAdapter) DiffPaths(repo string, oldPath string, oldRev int, newPath string, newRev int) (map[string]DiffEntry, error) {
	oldSnap, ok := f.snapshotAt(repo, oldRev)
	if !ok {
		return nil, fmt.Errorf("fake adapter: no snapshot for %s@%d", repo, oldRev)
	}
	newSnap, ok := f.snapshotAt(repo, newRev)
	if !ok {
		return nil, fmt.Errorf("fake adapter: no snapshot for %s@%d", repo, newRev)
	}
	oldRel := map[string]FakeNode{}
	for p, n := range oldSnap {
		if rel, match := relativize(p, oldPath); match {
			oldRel[rel] = n
		}
	}
	newRel := map[string]FakeNode{}
	for p, n := range newSnap {
		if rel, match := relativize(p, newPath); match {
			newRel[rel] = n
		}
	}

	deleted := map[string]DiffEntry{}
	changes := map[string]DiffEntry{}
	for rel, oldNode := range oldRel {
		newNode, present := newRel[rel]
		if !present {
			deleted[rel] = DiffEntry{ContentsOp: ContentsDelete}
			continue
		}
		contentsOp := ContentsNone
		if oldNode.Kind == dumprecord.KindFile && !bytes.Equal(oldNode.Content, newNode.Content) {
			contentsOp = ContentsModify
		}
		propsOp := PropsNone
		if !propsEqual(oldNode.Props, newNode.Props) {
			propsOp = PropsModify
		}
		if contentsOp != ContentsNone || propsOp != PropsNone {
			changes[rel] = DiffEntry{ContentsOp: contentsOp, PropsOp: propsOp}
		}
	}
	for rel := range newRel {
		if _, present := oldRel[rel]; !present {
			changes[rel] = DiffEntry{ContentsOp: ContentsAdd}
		}
	}

	paths := make([]string, 0, len(deleted))
	for p := range deleted {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if idx := strings.LastIndex(p, "/"); idx >= 0 {
			if _, parentDeleted := deleted[p[:idx]]; parentDeleted {
				continue
			}
		}
		changes[p] = deleted[p]
	}
	return changes, nil
}

func propsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func (f *FakeAdapter) GetExternalsProperty(repo string, rev int, path string) (string, error) {
	snap, ok := f.snapshotAt(repo, rev)
	if !ok {
		return "", nil
	}
	node, ok := snap[path]
	if !ok {
		return "", nil
	}
	return node.Props["svn:externals"], nil
}

func (f *FakeAdapter) SourceExists(repo string, rev int, path string) (bool, error) {
	snap, ok := f.snapshotAt(repo, rev)
	if !ok {
		return false, nil
	}
	_, ok = snap[path]
	return ok, nil
}
