package classify

import "strings"

// MatchOption returns the index of the option best matching answer: an exact
// case-insensitive match, else the first option containing the answer, else 0.
// Callers must not pass an empty options slice.
func MatchOption(options []string, answer string) int {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return 0
	}
	for i, o := range options {
		if strings.ToLower(strings.TrimSpace(o)) == a {
			return i
		}
	}
	for i, o := range options {
		if strings.Contains(strings.ToLower(o), a) {
			return i
		}
	}
	return 0
}

// Matched reports whether MatchOption found a real match rather than the fallback.
func Matched(options []string, answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return false
	}
	for _, o := range options {
		if strings.Contains(strings.ToLower(o), a) {
			return true
		}
	}
	return false
}
