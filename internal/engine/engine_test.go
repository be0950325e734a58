package engine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/esr/svndumpfilter3/internal/dumprecord"
	"gitlab.com/esr/svndumpfilter3/internal/pathfilter"
	"gitlab.com/esr/svndumpfilter3/internal/svnrepo"
)

func mustFilter(t *testing.T, patterns ...string) *pathfilter.Filter {
	t.Helper()
	f, err := pathfilter.New(patterns)
	require.NoError(t, err)
	return f
}

func runEngine(t *testing.T, cfg Config, adapter svnrepo.Adapter, input string) string {
	t.Helper()
	if adapter == nil {
		adapter = svnrepo.NewFakeAdapter()
	}
	e := New(cfg, adapter)
	r := dumprecord.NewReader(strings.NewReader(input))
	var buf bytes.Buffer
	w := dumprecord.NewWriter(&buf)
	require.NoError(t, e.Run(r, w))
	return buf.String()
}

const prologue = "SVN-fs-dump-format-version: 2\n\nUUID: test-uuid\n\n"

func TestPassthroughWithNoFilterPatterns(t *testing.T) {
	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 1\n\n" +
		"Node-path: trunk/a.txt\n" +
		"Node-action: add\n" +
		"Node-kind: file\n" +
		"Text-content-length: 5\n\n" +
		"hello\n\n"

	out := runEngine(t, Config{Filter: mustFilter(t)}, nil, input)
	require.Contains(t, out, "Node-path: trunk/a.txt")
	require.Contains(t, out, "Node-action: add")
	require.Contains(t, out, "hello")
}

func TestExcludedPathIsDropped(t *testing.T) {
	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 1\n\n" +
		"Node-path: branches/x/a.txt\n" +
		"Node-action: add\n" +
		"Node-kind: file\n" +
		"Text-content-length: 5\n\n" +
		"hello\n\n"

	out := runEngine(t, Config{Filter: mustFilter(t, "trunk/.*")}, nil, input)
	require.NotContains(t, out, "branches")
}

func TestParentOfIncludedAddIsDowngradedToPropertylessDir(t *testing.T) {
	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 1\n\n" +
		"Node-path: trunk\n" +
		"Node-action: add\n" +
		"Node-kind: dir\n" +
		"Prop-content-length: 10\n" +
		"Content-length: 10\n\n" +
		"PROPS-END\n\n"

	out := runEngine(t, Config{Filter: mustFilter(t, "trunk/sub/.*")}, nil, input)
	require.Contains(t, out, "Node-path: trunk")
	require.Contains(t, out, "Node-kind: dir")
	require.NotContains(t, out, "PROPS-END")
}

func TestForceDeleteSynthesizesTrailingDelete(t *testing.T) {
	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 1\n\n"

	cfg := Config{
		Filter:       mustFilter(t),
		ForceDeletes: map[int][]string{1: {"trunk/obsolete"}},
	}
	out := runEngine(t, cfg, nil, input)
	require.Contains(t, out, "Node-path: trunk/obsolete")
	require.Contains(t, out, "Node-action: delete")
}

func TestTruncateRevDropsAllNodeRecords(t *testing.T) {
	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 1\n\n" +
		"Node-path: trunk/a.txt\n" +
		"Node-action: add\n" +
		"Node-kind: file\n" +
		"Text-content-length: 5\n\n" +
		"hello\n\n"

	cfg := Config{Filter: mustFilter(t), TruncateRevs: map[int]bool{1: true}}
	out := runEngine(t, cfg, nil, input)
	require.NotContains(t, out, "Node-path")
	require.Contains(t, out, "Revision-number: 1")
}

func TestDropEmptyRevsSkipsRevisionWithNoSurvivors(t *testing.T) {
	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 1\n\n" +
		"Node-path: branches/x/a.txt\n" +
		"Node-action: add\n" +
		"Node-kind: file\n" +
		"Text-content-length: 5\n\n" +
		"hello\n\n" +
		"Revision-number: 2\n\n" +
		"Node-path: trunk/b.txt\n" +
		"Node-action: add\n" +
		"Node-kind: file\n" +
		"Text-content-length: 5\n\n" +
		"world\n\n"

	cfg := Config{Filter: mustFilter(t, "trunk/.*"), DropEmptyRevs: true}
	out := runEngine(t, cfg, nil, input)
	require.NotContains(t, out, "Revision-number: 1")
	require.Contains(t, out, "Revision-number: 0")
	require.Contains(t, out, "Revision-number: 2")
}

func TestRenumberRevsCompactsSequenceStartingAtOne(t *testing.T) {
	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 1\n\n" +
		"Node-path: branches/x/a.txt\n" +
		"Node-action: add\n" +
		"Node-kind: file\n" +
		"Text-content-length: 5\n\n" +
		"hello\n\n" +
		"Revision-number: 2\n\n" +
		"Node-path: branches/y/b.txt\n" +
		"Node-action: add\n" +
		"Node-kind: file\n" +
		"Text-content-length: 5\n\n" +
		"world\n\n" +
		"Revision-number: 3\n\n" +
		"Node-path: trunk/c.txt\n" +
		"Node-action: add\n" +
		"Node-kind: file\n" +
		"Text-content-length: 5\n\n" +
		"there\n\n"

	// r1 and r2 are excluded and dropped; only r0 (always kept) and r3
	// survive, renumbered to a contiguous sequence starting at 1 (spec.md
	// §8 invariant 4) rather than preserving their original numbers.
	cfg := Config{Filter: mustFilter(t, "trunk/.*"), DropEmptyRevs: true, RenumberRevs: true}
	out := runEngine(t, cfg, nil, input)
	require.Contains(t, out, "Revision-number: 1")
	require.Contains(t, out, "Revision-number: 2")
	require.NotContains(t, out, "Revision-number: 0")
	require.NotContains(t, out, "Revision-number: 3")
}

func TestDeletePropertyStripsFromRevisionAndNodeRecords(t *testing.T) {
	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 1\n" +
		"Prop-content-length: 54\n" +
		"Content-length: 54\n\n" +
		"K 10\nsvn:author\nV 4\njrh2\nK 6\nsecret\nV 3\nxxx\nPROPS-END\n\n" +
		"Node-path: trunk\n" +
		"Node-kind: dir\n" +
		"Node-action: add\n" +
		"Prop-content-length: 29\n" +
		"Content-length: 29\n\n" +
		"K 6\nsecret\nV 3\nxxx\nPROPS-END\n\n"

	cfg := Config{Filter: mustFilter(t), DeleteProperties: []string{"secret"}}
	out := runEngine(t, cfg, nil, input)
	require.Contains(t, out, "svn:author")
	require.Contains(t, out, "Node-path: trunk")
	require.NotContains(t, out, "secret")
}

func TestCopyDereferenceMaterializesUnreachableSource(t *testing.T) {
	adapter := svnrepo.NewFakeAdapter()
	adapter.SetSnapshot("/repo", 5, map[string]svnrepo.FakeNode{
		"branches/x":       {Kind: dumprecord.KindDir},
		"branches/x/a.txt": {Kind: dumprecord.KindFile, Content: []byte("hello")},
	})

	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 6\n\n" +
		"Node-path: trunk/mirror\n" +
		"Node-kind: dir\n" +
		"Node-action: add\n" +
		"Node-copyfrom-rev: 5\n" +
		"Node-copyfrom-path: branches/x\n\n"

	cfg := Config{Filter: mustFilter(t, "trunk/.*"), Repo: "/repo"}
	out := runEngine(t, cfg, adapter, input)
	require.Contains(t, out, "Node-path: trunk/mirror/a.txt")
	require.Contains(t, out, "hello")
}

func TestCopyDereferenceKeptIntactWhenSourceIncluded(t *testing.T) {
	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 6\n\n" +
		"Node-path: trunk/mirror\n" +
		"Node-kind: dir\n" +
		"Node-action: add\n" +
		"Node-copyfrom-rev: 5\n" +
		"Node-copyfrom-path: trunk/lib\n\n"

	cfg := Config{Filter: mustFilter(t, "trunk/.*"), Repo: "/repo"}
	out := runEngine(t, cfg, nil, input)
	require.Contains(t, out, "Node-copyfrom-path: trunk/lib")
}

func TestExternalsInternalizationMaterializesAddedExternal(t *testing.T) {
	adapter := svnrepo.NewFakeAdapter()
	adapter.SetSnapshot("/repo", 4, map[string]svnrepo.FakeNode{
		"vendor":       {Kind: dumprecord.KindDir},
		"vendor/a.txt": {Kind: dumprecord.KindFile, Content: []byte("vendored")},
	})
	adapter.SetSnapshot("/repo", 5, map[string]svnrepo.FakeNode{
		"trunk": {Kind: dumprecord.KindDir, Props: map[string]string{
			"svn:externals": "deps/vendor file:///repo/vendor",
		}},
	})

	input := prologue +
		"Revision-number: 0\n\n" +
		"Revision-number: 5\n\n" +
		"Node-path: trunk\n" +
		"Node-kind: dir\n" +
		"Node-action: change\n" +
		"Prop-content-length: 66\n" +
		"Content-length: 66\n\n" +
		"K 13\nsvn:externals\nV 31\ndeps/vendor file:///repo/vendor\nPROPS-END\n\n"

	cfg := Config{
		Filter:       mustFilter(t, "trunk"),
		Repo:         "/repo",
		ExternalsMap: map[string]string{"file:///repo": "/repo"},
	}
	out := runEngine(t, cfg, adapter, input)
	require.Contains(t, out, "Node-path: trunk/deps/vendor/a.txt")
	require.Contains(t, out, "vendored")
}
