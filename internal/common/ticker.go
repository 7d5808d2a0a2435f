// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// NormalizeTicker uppercases and trims a ticker symbol. Returns "" for
// symbols that are empty after trimming.
func NormalizeTicker(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// DedupeTickers flattens ticker symbols into a single duplicate-free list.
// Insertion order is preserved and the first occurrence wins, so a symbol
// held in several accounts appears once, at the position of its first account.
func DedupeTickers(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	result := make([]string, 0, len(symbols))

	for _, s := range symbols {
		normalized := NormalizeTicker(s)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}

	return result
}
