package findings

import (
	"strings"
)

// Finding is one signature hit in a changed file.
type Finding struct {
	Matches       int    `json:"matches"`        // Occurrences on one added line for content signatures, 1 otherwise
	SignatureName string `json:"signature_name"` // Name of the signature that fired
	FilePath      string `json:"file_path"`      // Repository relative path of the file
}

// SignatureNames returns the distinct signature names in first-seen order.
func SignatureNames(list []Finding) []string {
	seen := make(map[string]struct{}, len(list))
	names := make([]string, 0, len(list))
	for _, f := range list {
		if _, ok := seen[f.SignatureName]; ok {
			continue
		}
		seen[f.SignatureName] = struct{}{}
		names = append(names, f.SignatureName)
	}
	return names
}

// Describe builds a human readable summary of the findings, truncated to
// maxLen runes when maxLen is positive.
func Describe(list []Finding, maxLen int) string {
	description := strings.Join(SignatureNames(list), ", ")
	if maxLen <= 0 {
		return description
	}

	runes := []rune(description)
	if len(runes) <= maxLen {
		return description
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// TotalMatches sums the match counts of all findings.
func TotalMatches(list []Finding) int {
	total := 0
	for _, f := range list {
		total += f.Matches
	}
	return total
}
