package dumprecord

import (
	"fmt"
	"strconv"
	"strings"
)

// PropsParseError signals a malformed property block (spec.md §4.1): an
// unknown entry prefix, a non-numeric length, a length pointing past the
// end of the block, or trailing bytes after the PROPS-END trailer.
type PropsParseError struct {
	Reason string
}

func (e *PropsParseError) Error() string {
	return "property block parse error: " + e.Reason
}

// propEntry is one K/V or D entry of a property block, kept in wire order.
type propEntry struct {
	key     string
	value   string
	deleted bool // tombstone: "D" entry, value carries no meaning
}

// Properties is the optional ordered property block of a Record: an
// ordered mapping from property name to either a string value or a
// tombstone meaning "deleted" (spec.md §3). A nil *Properties means the
// record carries no property block at all; a non-nil Properties with zero
// entries means an empty-but-present block.
type Properties struct {
	entries []propEntry
	index   map[string]int // key -> index into entries, for O(1) lookup/update
}

// NewProperties returns an empty, present property block.
func NewProperties() *Properties {
	return &Properties{index: make(map[string]int)}
}

// Clone makes an independent deep copy.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return nil
	}
	c := NewProperties()
	c.entries = append(c.entries, p.entries...)
	for k, v := range p.index {
		c.index[k] = v
	}
	return c
}

// Set installs key=value as a K entry, replacing any prior tombstone or
// value for the same key in place.
func (p *Properties) Set(key, value string) {
	if i, ok := p.index[key]; ok {
		p.entries[i] = propEntry{key: key, value: value}
		return
	}
	p.index[key] = len(p.entries)
	p.entries = append(p.entries, propEntry{key: key, value: value})
}

// Delete installs a tombstone for key, replacing any prior entry in
// place (used by Prop-delta overlays, see internal/flatten).
func (p *Properties) Delete(key string) {
	if i, ok := p.index[key]; ok {
		p.entries[i] = propEntry{key: key, deleted: true}
		return
	}
	p.index[key] = len(p.entries)
	p.entries = append(p.entries, propEntry{key: key, deleted: true})
}

// Remove drops key's entry entirely (neither set nor tombstoned); used
// when a deletion is materialized onto a full property block
// (internal/flatten) and when --delete-property names are stripped
// (internal/engine).
func (p *Properties) Remove(key string) {
	i, ok := p.index[key]
	if !ok {
		return
	}
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	delete(p.index, key)
	for k, idx := range p.index {
		if idx > i {
			p.index[k] = idx - 1
		}
	}
}

// Get returns the live value for key (false if absent or tombstoned).
func (p *Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	i, ok := p.index[key]
	if !ok || p.entries[i].deleted {
		return "", false
	}
	return p.entries[i].value, true
}

// Has reports whether key has a live (non-tombstone) value.
func (p *Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// IsTombstoned reports whether key is present as a deletion entry.
func (p *Properties) IsTombstoned(key string) bool {
	if p == nil {
		return false
	}
	i, ok := p.index[key]
	return ok && p.entries[i].deleted
}

// Keys returns property names in wire order, including tombstones.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.key
	}
	return out
}

// Len reports the number of entries (K and D together).
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Serialize renders the wire form of the property block, including the
// PROPS-END trailer (spec.md §3 "Property block wire format").
func (p *Properties) Serialize() []byte {
	var b strings.Builder
	if p != nil {
		for _, e := range p.entries {
			if e.deleted {
				fmt.Fprintf(&b, "D %d\n%s\n", len(e.key), e.key)
			} else {
				fmt.Fprintf(&b, "K %d\n%s\nV %d\n%s\n", len(e.key), e.key, len(e.value), e.value)
			}
		}
	}
	b.WriteString("PROPS-END\n")
	return []byte(b.String())
}

// ParseProperties decodes a raw property-block byte slice (exactly
// Prop-content-length bytes, as read by the record codec) into a
// Properties value. Any of the four documented failure modes produces a
// *PropsParseError.
func ParseProperties(data []byte) (*Properties, error) {
	p := NewProperties()
	pos := 0
	for {
		lineEnd := indexByte(data, pos, '\n')
		if lineEnd < 0 {
			return nil, &PropsParseError{Reason: "unterminated entry header, missing PROPS-END trailer"}
		}
		line := string(data[pos:lineEnd])
		if line == "PROPS-END" {
			pos = lineEnd + 1
			if pos != len(data) {
				return nil, &PropsParseError{Reason: "trailing bytes after PROPS-END"}
			}
			return p, nil
		}
		switch {
		case strings.HasPrefix(line, "K "):
			keylen, err := strconv.Atoi(line[2:])
			if err != nil {
				return nil, &PropsParseError{Reason: "non-numeric length in K entry"}
			}
			nameStart := lineEnd + 1
			nameEnd := nameStart + keylen
			if nameEnd+1 > len(data) || data[nameEnd] != '\n' {
				return nil, &PropsParseError{Reason: "K entry length points past end of block"}
			}
			name := string(data[nameStart:nameEnd])
			pos = nameEnd + 1
			vLineEnd := indexByte(data, pos, '\n')
			if vLineEnd < 0 || !strings.HasPrefix(string(data[pos:vLineEnd]), "V ") {
				return nil, &PropsParseError{Reason: "expected V entry after K"}
			}
			vallen, err := strconv.Atoi(string(data[pos+2 : vLineEnd]))
			if err != nil {
				return nil, &PropsParseError{Reason: "non-numeric length in V entry"}
			}
			valStart := vLineEnd + 1
			valEnd := valStart + vallen
			if valEnd+1 > len(data) || data[valEnd] != '\n' {
				return nil, &PropsParseError{Reason: "V entry length points past end of block"}
			}
			value := string(data[valStart:valEnd])
			p.Set(name, value)
			pos = valEnd + 1
		case strings.HasPrefix(line, "D "):
			keylen, err := strconv.Atoi(line[2:])
			if err != nil {
				return nil, &PropsParseError{Reason: "non-numeric length in D entry"}
			}
			nameStart := lineEnd + 1
			nameEnd := nameStart + keylen
			if nameEnd+1 > len(data) || data[nameEnd] != '\n' {
				return nil, &PropsParseError{Reason: "D entry length points past end of block"}
			}
			name := string(data[nameStart:nameEnd])
			p.Delete(name)
			pos = nameEnd + 1
		default:
			return nil, &PropsParseError{Reason: fmt.Sprintf("unknown entry prefix %q", line)}
		}
	}
}

func indexByte(data []byte, from int, b byte) int {
	for i := from; i < len(data); i++ {
		if data[i] == b {
			return i
		}
	}
	return -1
}
