package taxonomy

import (
	"strings"

	"golang.org/x/text/cases"
)

// Entry is one reference taxon: a common name paired with its scientific name.
type Entry struct {
	Common     string
	Scientific string
}

// Canonical returns the "Common Name (Scientific name)" form used as the
// reconciliation join key throughout the system.
func (e Entry) Canonical() string {
	return e.Common + " (" + e.Scientific + ")"
}

// Index provides prefix/substring search and fuzzy best-match over the
// reference list. It is immutable after construction.
type Index struct {
	entries          []Entry
	foldedCommon     []string
	foldedScientific []string
	foldedHaystack   []string
}

// fold normalizes for case-insensitive comparison. Casers carry internal
// state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// NewIndex builds an index over the provided entries, preserving their order
// as the discovery order for search results.
func NewIndex(entries []Entry) *Index {
	ix := &Index{
		entries:          make([]Entry, len(entries)),
		foldedCommon:     make([]string, len(entries)),
		foldedScientific: make([]string, len(entries)),
		foldedHaystack:   make([]string, len(entries)),
	}
	copy(ix.entries, entries)
	for i, entry := range entries {
		ix.foldedCommon[i] = fold(entry.Common)
		ix.foldedScientific[i] = fold(entry.Scientific)
		ix.foldedHaystack[i] = ix.foldedCommon[i] + " " + ix.foldedScientific[i]
	}
	return ix
}

// Len returns the number of reference entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Entries returns a copy of the reference list in discovery order.
func (ix *Index) Entries() []Entry {
	cp := make([]Entry, len(ix.entries))
	copy(cp, ix.entries)
	return cp
}

// Search returns up to limit entries ranked in four tiers: common-name
// prefix, scientific-name prefix, common-name substring, scientific-name
// substring. Each tier preserves discovery order. Scanning stops once three
// times the limit has been collected across tiers, trading completeness for
// latency on large reference sets.
func (ix *Index) Search(query string, limit int) []Entry {
	q := fold(query)
	if q == "" || limit <= 0 {
		return nil
	}

	budget := 3 * limit
	seen := make(map[int]struct{}, budget)
	ordered := make([]int, 0, budget)

	collect := func(match func(i int) bool) {
		for i := range ix.entries {
			if len(ordered) >= budget {
				return
			}
			if _, dup := seen[i]; dup {
				continue
			}
			if match(i) {
				seen[i] = struct{}{}
				ordered = append(ordered, i)
			}
		}
	}

	collect(func(i int) bool { return strings.HasPrefix(ix.foldedCommon[i], q) })
	collect(func(i int) bool { return strings.HasPrefix(ix.foldedScientific[i], q) })
	collect(func(i int) bool { return strings.Contains(ix.foldedCommon[i], q) })
	collect(func(i int) bool { return strings.Contains(ix.foldedScientific[i], q) })

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	results := make([]Entry, len(ordered))
	for i, idx := range ordered {
		results[i] = ix.entries[idx]
	}
	return results
}

// FindBestMatch resolves an arbitrary species string to a reference entry.
// Resolution order, first success wins: exact common-name match; for inputs
// shaped like "Name (Scientific name)", exact scientific then exact common
// on the parts; exact scientific match on the whole input; finally a fuzzy
// token fallback for the malformed strings AI output and spreadsheet
// imports routinely produce ("chukar partridge" vs. "Chukar").
func (ix *Index) FindBestMatch(raw string) (Entry, bool) {
	q := fold(raw)
	if q == "" {
		return Entry{}, false
	}

	if entry, ok := ix.exactCommon(q); ok {
		return entry, true
	}

	if name, sci, ok := splitCanonical(raw); ok {
		if entry, found := ix.exactScientific(fold(sci)); found {
			return entry, true
		}
		if entry, found := ix.exactCommon(fold(name)); found {
			return entry, true
		}
	}

	if entry, ok := ix.exactScientific(q); ok {
		return entry, true
	}

	return ix.fuzzyMatch(q)
}

func (ix *Index) exactCommon(folded string) (Entry, bool) {
	for i, candidate := range ix.foldedCommon {
		if candidate == folded {
			return ix.entries[i], true
		}
	}
	return Entry{}, false
}

func (ix *Index) exactScientific(folded string) (Entry, bool) {
	for i, candidate := range ix.foldedScientific {
		if candidate == folded {
			return ix.entries[i], true
		}
	}
	return Entry{}, false
}

// splitCanonical parses the "<name> (<scientific>)" shape. Returns ok only
// when both halves are non-empty.
func splitCanonical(raw string) (name, scientific string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasSuffix(trimmed, ")") {
		return "", "", false
	}
	open := strings.LastIndex(trimmed, "(")
	if open <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(trimmed[:open])
	scientific = strings.TrimSpace(trimmed[open+1 : len(trimmed)-1])
	if name == "" || scientific == "" {
		return "", "", false
	}
	return name, scientific, true
}

// fuzzyMatch tokenizes the input on whitespace, hyphens, and parentheses and
// scores every entry by how many tokens appear as substrings of
// "common scientific". The best entry wins only when at least half the
// tokens (rounded up) matched; ties keep the earliest entry.
func (ix *Index) fuzzyMatch(folded string) (Entry, bool) {
	tokens := tokenize(folded)
	if len(tokens) == 0 {
		return Entry{}, false
	}
	required := (len(tokens) + 1) / 2

	bestIdx := -1
	bestScore := 0
	for i, haystack := range ix.foldedHaystack {
		score := 0
		for _, token := range tokens {
			if strings.Contains(haystack, token) {
				score++
			}
		}
		if score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	if bestIdx < 0 || bestScore < required {
		return Entry{}, false
	}
	return ix.entries[bestIdx], true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '-', '(', ')':
			return true
		}
		return false
	})
}
