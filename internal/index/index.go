// Package index implements the in-memory key directory: a map from key to
// the locator of its most recent Set record. The engine assumes a single
// exclusive mutator and runs single-threaded, so the index is a plain map
// rather than a synchronized one.
package index

import "kvengine/internal/logdir"

// Locator identifies exactly where a record lives: which log file, at what
// byte offset, and how many bytes long.
type Locator struct {
	Version logdir.Version
	Offset  int64
	Length  int64
}

// Index maps keys to the locator of their latest Set record.
type Index struct {
	entries map[string]Locator
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string]Locator)}
}

// Lookup returns the locator for key, if present.
func (i *Index) Lookup(key string) (Locator, bool) {
	loc, ok := i.entries[key]
	return loc, ok
}

// Put records key's newest locator and returns the locator it replaced, if
// any — the caller uses the replaced locator's length to grow the
// stale-byte counter.
func (i *Index) Put(key string, loc Locator) (Locator, bool) {
	prev, had := i.entries[key]
	i.entries[key] = loc
	return prev, had
}

// Delete removes key and returns the locator it had, if any.
func (i *Index) Delete(key string) (Locator, bool) {
	prev, had := i.entries[key]
	if had {
		delete(i.entries, key)
	}
	return prev, had
}

// Len returns the number of live keys.
func (i *Index) Len() int { return len(i.entries) }

// Range calls fn for every live key/locator pair. fn must not mutate the
// index.
func (i *Index) Range(fn func(key string, loc Locator)) {
	for k, v := range i.entries {
		fn(k, v)
	}
}

// Snapshot returns a copy of the index as a plain map, for tests that
// compare engine state against a reference model.
func (i *Index) Snapshot() map[string]Locator {
	out := make(map[string]Locator, len(i.entries))
	for k, v := range i.entries {
		out[k] = v
	}
	return out
}
