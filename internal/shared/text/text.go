package text

// Truncate cuts s to at most n characters without splitting a UTF-8
// sequence. MySQL varchar limits count characters, not bytes.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
