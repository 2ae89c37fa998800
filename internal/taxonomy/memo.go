package taxonomy

import (
	"strconv"
	"sync"
)

// Memoized caches Index lookups. Taxonomy queries repeat heavily during a
// batch (the same AI guess appears once per photo), and the underlying index
// is pure, so caching in front of it is safe. Incidental performance
// plumbing only; callers must not depend on it for correctness.
type Memoized struct {
	index *Index

	mu      sync.Mutex
	matches map[string]matchResult
	queries map[string][]Entry
}

type matchResult struct {
	entry Entry
	ok    bool
}

// NewMemoized wraps an index with a lookup cache.
func NewMemoized(index *Index) *Memoized {
	return &Memoized{
		index:   index,
		matches: make(map[string]matchResult),
		queries: make(map[string][]Entry),
	}
}

// FindBestMatch behaves like Index.FindBestMatch with caching.
func (m *Memoized) FindBestMatch(raw string) (Entry, bool) {
	key := fold(raw)

	m.mu.Lock()
	cached, hit := m.matches[key]
	m.mu.Unlock()
	if hit {
		return cached.entry, cached.ok
	}

	entry, ok := m.index.FindBestMatch(raw)

	m.mu.Lock()
	m.matches[key] = matchResult{entry: entry, ok: ok}
	m.mu.Unlock()
	return entry, ok
}

// Search behaves like Index.Search with caching.
func (m *Memoized) Search(query string, limit int) []Entry {
	key := fold(query) + "\x00" + strconv.Itoa(limit)

	m.mu.Lock()
	cached, hit := m.queries[key]
	m.mu.Unlock()
	if hit {
		results := make([]Entry, len(cached))
		copy(results, cached)
		return results
	}

	results := m.index.Search(query, limit)

	stored := make([]Entry, len(results))
	copy(stored, results)
	m.mu.Lock()
	m.queries[key] = stored
	m.mu.Unlock()
	return results
}
