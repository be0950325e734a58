package dumprecord

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// RevMap rewrites an input revision number to an output revision number.
// A false second return means "no remap configured for this number" (the
// header is left as-is).
type RevMap func(rev int) (int, bool)

// Writer serializes Records onto an underlying stream.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for record output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// fixInvariants applies the five controlled-header rules of spec.md §3
// before emission. It mutates rec in place; callers own the Record and are
// expected to be done reading it once written.
func fixInvariants(rec *Record, remap RevMap) {
	if rec.Properties != nil {
		rec.Headers.Set("Prop-content-length", strconv.Itoa(len(rec.Properties.Serialize())))
	} else {
		rec.Headers.Delete("Prop-content-length")
	}

	if !rec.HasText {
		rec.Headers.Delete("Text-content-length")
		rec.Headers.Delete("Text-content-md5")
		rec.Headers.Delete("Text-content-sha1")
		rec.Headers.Delete("Text-delta")
	} else {
		rec.Headers.Set("Text-content-length", strconv.Itoa(len(rec.Text)))
		if _, hasMD5 := rec.Headers.Get("Text-content-md5"); !hasMD5 {
			if delta, _ := rec.Headers.Get("Text-delta"); delta != "true" {
				sum := md5.Sum(rec.Text)
				rec.Headers.Set("Text-content-md5", hex.EncodeToString(sum[:]))
			}
		}
	}

	propLen, textLen := 0, 0
	if rec.Properties != nil {
		propLen = len(rec.Properties.Serialize())
	}
	if rec.HasText {
		textLen = len(rec.Text)
	}
	if rec.Properties != nil || rec.HasText {
		rec.Headers.Set("Content-length", strconv.Itoa(propLen+textLen))
	} else {
		rec.Headers.Delete("Content-length")
	}

	if remap != nil {
		for _, h := range []string{"Revision-number", "Node-copyfrom-rev"} {
			if v, ok := rec.Headers.Get(h); ok {
				if n, err := strconv.Atoi(v); err == nil {
					if nn, present := remap(n); present {
						rec.Headers.Set(h, strconv.Itoa(nn))
					}
				}
			}
		}
	}
}

// WriteRecord fixes invariants and emits rec to the stream.
func (w *Writer) WriteRecord(rec *Record, remap RevMap) error {
	fixInvariants(rec, remap)
	for _, k := range rec.Headers.Keys() {
		v, _ := rec.Headers.Get(k)
		if _, err := fmt.Fprintf(w.w, "%s: %s\n", k, v); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w.w, "\n"); err != nil {
		return err
	}
	if rec.Properties != nil {
		if _, err := w.w.Write(rec.Properties.Serialize()); err != nil {
			return err
		}
	}
	if rec.HasText {
		if _, err := w.w.Write(rec.Text); err != nil {
			return err
		}
		// Text-content-length counts only the raw bytes; the newline that
		// ends the text line on the wire is not part of that count.
		if _, err := io.WriteString(w.w, "\n"); err != nil {
			return err
		}
	}
	if rec.Properties != nil || rec.HasText {
		if _, err := io.WriteString(w.w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
