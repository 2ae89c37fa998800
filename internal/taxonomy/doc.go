// Package taxonomy holds the in-memory bird reference list and the search
// and fuzzy-matching logic that resolves free-text species strings onto it.
//
// The bundled dataset ships as an embedded CSV of common/scientific name
// pairs. Lookups are pure; Memoized adds an optional cache in front.
package taxonomy
