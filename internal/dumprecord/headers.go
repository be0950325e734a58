package dumprecord

// Headers is an insertion-order-preserving string-to-string map, the Go
// shape spec.md §3 calls for ("ordered mapping from header name to string
// value; insertion order is significant for output"). Grounded on
// surgeon/inner.go's OrderedMap, adapted from a commit-metadata container
// to a record-header container.
type Headers struct {
	keys []string
	vals map[string]string
}

// NewHeaders returns an empty, ready-to-use Headers.
func NewHeaders() *Headers {
	return &Headers{vals: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (h *Headers) Get(key string) (string, bool) {
	v, ok := h.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (h *Headers) Has(key string) bool {
	_, ok := h.vals[key]
	return ok
}

// Set inserts or updates key, preserving its original position on update.
func (h *Headers) Set(key, value string) {
	if _, ok := h.vals[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.vals[key] = value
}

// Delete removes key if present.
func (h *Headers) Delete(key string) {
	if _, ok := h.vals[key]; !ok {
		return
	}
	delete(h.vals, key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the header names in insertion order.
func (h *Headers) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}

// Len reports the number of headers.
func (h *Headers) Len() int {
	return len(h.keys)
}

// Clone makes an independent copy.
func (h *Headers) Clone() *Headers {
	c := NewHeaders()
	for _, k := range h.keys {
		c.Set(k, h.vals[k])
	}
	return c
}
