// Package species resolves free-text species strings to the canonical
// "Common Name (Scientific name)" form used as the ledger join key.
package species

import (
	"log/slog"
	"strings"

	"fieldbook/internal/logging"
	"fieldbook/internal/taxonomy"
)

// Matcher is the lookup surface the normalizer needs. Both taxonomy.Index
// and taxonomy.Memoized satisfy it.
type Matcher interface {
	FindBestMatch(raw string) (taxonomy.Entry, bool)
}

// Normalizer maps arbitrary species strings onto the reference taxonomy.
type Normalizer struct {
	matcher Matcher
	logger  *slog.Logger
}

// NewNormalizer builds a normalizer over the given matcher.
func NewNormalizer(matcher Matcher, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		matcher: matcher,
		logger:  logging.NewComponentLogger(logger, "species"),
	}
}

// Normalize resolves raw to canonical form. Unrecognized names round-trip as
// the trimmed input: two sources naming the same species converge only if
// they normalize identically, and an unknown local name is still worth
// keeping. A taxonomy miss is observability, not an error.
func (n *Normalizer) Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	entry, ok := n.matcher.FindBestMatch(trimmed)
	if !ok {
		n.logger.Debug("taxonomy miss, keeping raw name", logging.String("raw", trimmed))
		return trimmed
	}

	canonical := entry.Canonical()
	if canonical != trimmed {
		n.logger.Debug("normalized species name",
			logging.String("raw", trimmed),
			logging.String("canonical", canonical))
	}
	return canonical
}
