// Package strings holds small slice helpers used when cleaning configuration.
package strings

import (
	"strings"
)

// DedupeFold trims each element and drops empties and case-insensitive
// duplicates, keeping the first spelling seen. Order is preserved.
//
//	DedupeFold([]string{" Name ", "DOB", "name", ""}) // []string{"Name", "DOB"}
func DedupeFold(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
