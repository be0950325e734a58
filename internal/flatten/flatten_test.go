package flatten

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/esr/svndumpfilter3/internal/dumprecord"
)

func addRecord(path string, origin dumprecord.Origin) *dumprecord.Record {
	r := dumprecord.NewRecord()
	r.Origin = origin
	r.Headers.Set("Node-path", path)
	r.Headers.Set("Node-kind", "file")
	r.Headers.Set("Node-action", "add")
	return r
}

func changeRecord(path string, text string) *dumprecord.Record {
	r := dumprecord.NewRecord()
	r.Headers.Set("Node-path", path)
	r.Headers.Set("Node-action", "change")
	if text != "" {
		r.Text = []byte(text)
		r.HasText = true
	}
	return r
}

func deleteRecord(path string, origin dumprecord.Origin) *dumprecord.Record {
	r := dumprecord.NewRecord()
	r.Origin = origin
	r.Headers.Set("Node-path", path)
	r.Headers.Set("Node-action", "delete")
	return r
}

func TestUnrelatedPathsPassThroughUntouched(t *testing.T) {
	recs := []*dumprecord.Record{addRecord("a", dumprecord.OriginDump), addRecord("b", dumprecord.OriginDump)}
	out, err := Flatten(recs)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestAddFollowedByChangeMergesIntoAdd(t *testing.T) {
	add := addRecord("x", dumprecord.OriginCopy)
	chg := changeRecord("x", "new body")
	out, err := Flatten([]*dumprecord.Record{add, chg})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, dumprecord.ActionAdd, out[0].NodeAction())
	require.Equal(t, []byte("new body"), out[0].Text)
}

func TestDeleteFollowedByAddBecomesReplace(t *testing.T) {
	del := deleteRecord("x", dumprecord.OriginDump)
	add := addRecord("x", dumprecord.OriginDump)
	out, err := Flatten([]*dumprecord.Record{del, add})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, dumprecord.ActionReplace, out[0].NodeAction())
}

func TestExternalsAddThenDumpDeleteReorders(t *testing.T) {
	add := addRecord("x", dumprecord.OriginExternals)
	del := deleteRecord("x", dumprecord.OriginDump)
	out, err := Flatten([]*dumprecord.Record{add, del})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, dumprecord.ActionDelete, out[0].NodeAction())
	require.Equal(t, dumprecord.ActionAdd, out[1].NodeAction())
}

func TestAddThenDeleteOfSameOriginCancels(t *testing.T) {
	add := addRecord("x", dumprecord.OriginCopy)
	del := deleteRecord("x", dumprecord.OriginCopy)
	out, err := Flatten([]*dumprecord.Record{add, del})
	require.NoError(t, err)
	require.Len(t, out, 0)
}

func TestOverlappingAddsKeepsSecondWithWarning(t *testing.T) {
	first := addRecord("x", dumprecord.OriginCopy)
	second := addRecord("x", dumprecord.OriginExternals)
	out, err := Flatten([]*dumprecord.Record{first, second})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Same(t, second, out[0])
}

func TestChangeChangeMergeIsSequential(t *testing.T) {
	c1 := changeRecord("x", "first")
	c2 := changeRecord("x", "second")
	out, err := Flatten([]*dumprecord.Record{c1, c2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, []byte("second"), out[0].Text)
}

func TestPropDeltaChangeOverlaysKeys(t *testing.T) {
	add := addRecord("x", dumprecord.OriginCopy)
	add.Properties = dumprecord.NewProperties()
	add.Properties.Set("svn:keep", "1")
	add.Properties.Set("svn:drop", "1")

	chg := changeRecord("x", "")
	chg.Headers.Set("Prop-delta", "true")
	chg.Properties = dumprecord.NewProperties()
	chg.Properties.Set("svn:added", "2")
	chg.Properties.Delete("svn:drop")

	out, err := Flatten([]*dumprecord.Record{add, chg})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].Properties.Has("svn:keep"))
	require.True(t, out[0].Properties.Has("svn:added"))
	require.False(t, out[0].Properties.Has("svn:drop"))
}

func TestDeltaTextOnMergeIsAnError(t *testing.T) {
	add := addRecord("x", dumprecord.OriginCopy)
	chg := changeRecord("x", "diff bytes")
	chg.Headers.Set("Text-delta", "true")
	_, err := Flatten([]*dumprecord.Record{add, chg})
	require.Error(t, err)
}

func TestChangeThenAddIsUnsupported(t *testing.T) {
	chg := changeRecord("x", "body")
	add := addRecord("x", dumprecord.OriginDump)
	_, err := Flatten([]*dumprecord.Record{chg, add})
	require.Error(t, err)
}
