package utils

// Truncate shortens s to at most limit bytes and marks the cut with "...".
// A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
