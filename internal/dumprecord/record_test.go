package dumprecord

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripHeaderOnlyRecord(t *testing.T) {
	input := "Revision-number: 0\n" +
		"Prop-content-length: 10\n" +
		"Content-length: 10\n\n" +
		"PROPS-END\n\n"
	r := NewReader(strings.NewReader(input))
	rec, err := r.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, "0", mustGet(t, rec, "Revision-number"))
	require.NotNil(t, rec.Properties)
	require.Equal(t, 0, rec.Properties.Len())

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteRecord(rec, nil))
	require.Equal(t, input, buf.String())
}

func TestRoundTripAddFileFillsMD5(t *testing.T) {
	input := "Node-path: trunk/file.txt\n" +
		"Node-kind: file\n" +
		"Node-action: add\n" +
		"Prop-content-length: 10\n" +
		"Text-content-length: 5\n" +
		"Content-length: 15\n\n" +
		"PROPS-END\nhello\n"
	r := NewReader(strings.NewReader(input))
	rec, err := r.ReadRecord()
	require.NoError(t, err)
	require.True(t, rec.HasText)
	require.Equal(t, []byte("hello"), rec.Text)

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteRecord(rec, nil))
	sum := md5.Sum([]byte("hello"))
	require.Contains(t, buf.String(), "Text-content-md5: "+hex.EncodeToString(sum[:])+"\n")
	require.Contains(t, buf.String(), "Content-length: 15\n")
}

func TestRevMapRewritesCopyfromRev(t *testing.T) {
	input := "Node-path: mirror\n" +
		"Node-kind: dir\n" +
		"Node-action: add\n" +
		"Node-copyfrom-rev: 3\n" +
		"Node-copyfrom-path: source\n\n"
	r := NewReader(strings.NewReader(input))
	rec, err := r.ReadRecord()
	require.NoError(t, err)

	var buf bytes.Buffer
	remap := func(rev int) (int, bool) {
		if rev == 3 {
			return 7, true
		}
		return 0, false
	}
	require.NoError(t, NewWriter(&buf).WriteRecord(rec, remap))
	require.Contains(t, buf.String(), "Node-copyfrom-rev: 7\n")
}

func TestPropertiesParseErrorModes(t *testing.T) {
	cases := map[string]string{
		"unknown prefix":     "X 3\nfoo\nPROPS-END\n",
		"non-numeric length": "K abc\nfoo\nV 1\nx\nPROPS-END\n",
		"length past end":    "K 100\nfoo\nV 1\nx\nPROPS-END\n",
		"trailing bytes":     "PROPS-END\nstray\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProperties([]byte(data))
			require.Error(t, err)
			var pe *PropsParseError
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestPropertiesTombstoneVsEmptyValue(t *testing.T) {
	p := NewProperties()
	p.Set("svn:eol-style", "")
	p.Delete("svn:executable")
	v, ok := p.Get("svn:eol-style")
	require.True(t, ok)
	require.Equal(t, "", v)
	require.False(t, p.Has("svn:executable"))
	require.True(t, p.IsTombstoned("svn:executable"))
}

func TestEOFBeforeAnyHeaderIsCleanEndOfStream(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.ReadRecord()
	require.ErrorIs(t, err, io.EOF)
}

func TestRoundTripTwoTextRecordsBackToBack(t *testing.T) {
	input := "Node-path: trunk/a.txt\n" +
		"Node-kind: file\n" +
		"Node-action: add\n" +
		"Text-content-length: 5\n" +
		"Content-length: 5\n\n" +
		"hello\n\n" +
		"Node-path: trunk/b.txt\n" +
		"Node-kind: file\n" +
		"Node-action: add\n" +
		"Text-content-length: 5\n" +
		"Content-length: 5\n\n" +
		"world\n\n"
	r := NewReader(strings.NewReader(input))

	first, err := r.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), first.Text)

	second, err := r.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, "trunk/b.txt", mustGet(t, second, "Node-path"))
	require.Equal(t, []byte("world"), second.Text)

	_, err = r.ReadRecord()
	require.ErrorIs(t, err, io.EOF)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRecord(first, nil))
	require.NoError(t, w.WriteRecord(second, nil))

	// The writer's own trailer must feed back into the reader cleanly:
	// two content-bearing records in a row, no stray blank line
	// mistaken for end of stream.
	r2 := NewReader(bytes.NewReader(buf.Bytes()))
	got1, err := r2.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got1.Text)
	got2, err := r2.ReadRecord()
	require.NoError(t, err)
	require.Equal(t, []byte("world"), got2.Text)
	_, err = r2.ReadRecord()
	require.ErrorIs(t, err, io.EOF)
}

func mustGet(t *testing.T, rec *Record, key string) string {
	t.Helper()
	v, ok := rec.Headers.Get(key)
	if !ok {
		t.Fatalf("missing header %s", key)
	}
	return v
}
