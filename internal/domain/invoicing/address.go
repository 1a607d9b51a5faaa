package invoicing

import "strings"

// SplitAddress splits a comma-delimited address into display lines.
// Whitespace around each segment is dropped, empty segments are skipped
// and the original order is kept.
func SplitAddress(address string) []string {
	parts := strings.Split(address, ",")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lines = append(lines, p)
	}
	return lines
}
