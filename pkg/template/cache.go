// Package template provides the keyed template retention NetFlow v9, IPFIX
// and jFlow decoders need to interpret data records. Template state is
// injected rather than held in package globals, so multiple senders (and
// tests) can be exercised independently — design note 9.1.
package template

import "sync"

// Field describes one element of a template's record layout.
type Field struct {
	ID         int // information-element id (NetFlow v9 field type, or IPFIX IE id)
	Length     int // length in bytes
	Enterprise *uint32 // IPFIX enterprise number, nil unless the enterprise bit was set
}

// Template is the ordered field layout data records following it must match.
type Template struct {
	ID     int
	Fields []Field
}

type key struct {
	exporter string
	domain   int
	id       int
}

// Cache is a concurrency-safe template store keyed by
// (exporter identity, observation-domain/source-id, template-id). A cache
// instance is scoped to one decoder family (NetFlow v9, IPFIX, or jFlow each
// get their own), matching the "each family's cache may be independent"
// guidance in spec.md §5.
type Cache struct {
	mu        sync.RWMutex
	templates map[key]Template
}

// NewCache returns an empty template cache.
func NewCache() *Cache {
	return &Cache{templates: make(map[key]Template)}
}

// Put inserts or overwrites the template for (exporter, domain, id).
func (c *Cache) Put(exporter string, domain int, tmpl Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[key{exporter, domain, tmpl.ID}] = tmpl
}

// Get returns the cached template for (exporter, domain, id), if any.
func (c *Cache) Get(exporter string, domain int, id int) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[key{exporter, domain, id}]
	return t, ok
}
