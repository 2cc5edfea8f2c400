package utils

// Truncate shortens s to maxLen bytes, appending an ellipsis when it cuts.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
