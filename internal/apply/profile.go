package apply

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

type profileRule struct {
	keys  []string
	value func(*types.CandidateProfile) string
}

// Rules are checked in order; more specific name rules precede the generic one.
var profileRules = []profileRule{
	{[]string{"email"}, func(p *types.CandidateProfile) string { return p.Email }},
	{[]string{"phone", "mobile"}, func(p *types.CandidateProfile) string { return p.Phone }},
	{[]string{"first name", "firstname", "given name"}, (*types.CandidateProfile).FirstName},
	{[]string{"last name", "lastname", "family name", "surname"}, (*types.CandidateProfile).LastName},
	{[]string{"full name", "fullname", "your name"}, func(p *types.CandidateProfile) string { return p.Name }},
	{[]string{"city"}, func(p *types.CandidateProfile) string { return p.City }},
}

// ProfileAnswer answers obvious contact questions straight from the profile.
// Preferences match when their key appears in the question. The second return
// is false when the profile has nothing for the question.
func ProfileAnswer(p *types.CandidateProfile, question string) (string, bool) {
	if p == nil {
		return "", false
	}
	q := strings.ToLower(question)

	for _, rule := range profileRules {
		for _, k := range rule.keys {
			if containsWord(q, k) {
				if v := strings.TrimSpace(rule.value(p)); v != "" {
					return v, true
				}
				return "", false
			}
		}
	}

	keys := make([]string, 0, len(p.Preferences))
	for k := range p.Preferences {
		keys = append(keys, k)
	}
	// Longest key first, so "remote work" wins over "remote".
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if containsWord(q, key) {
			if v := strings.TrimSpace(p.Preferences[k]); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// containsWord reports whether key occurs in s with no letter or digit
// directly before or after it, so "city" does not match "ethnicity".
func containsWord(s, key string) bool {
	for from := 0; from <= len(s)-len(key); {
		i := strings.Index(s[from:], key)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(key)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
