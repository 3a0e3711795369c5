package search

import (
	"sort"
	"strings"

	"shopassist/internal/config"
)

// stopWords are dropped before keyword matching.
var stopWords = map[string]struct{}{
	"i": {}, "want": {}, "need": {}, "show": {}, "me": {}, "find": {},
	"looking": {}, "for": {}, "a": {}, "an": {}, "the": {}, "with": {},
	"and": {}, "or": {},
}

// ExtractKeywords lowercases the text, drops stop words and keeps tokens
// longer than two characters.
func ExtractKeywords(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if len(w) <= 2 {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

// DetectCategory maps query text onto a navigation category via keyword
// rules. Returns "" when no rule matches.
func DetectCategory(text string, rules config.CategoryRules) string {
	lowered := strings.ToLower(text)

	categories := make([]string, 0, len(rules))
	for category := range rules {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, kw := range rules[category] {
			if strings.Contains(lowered, kw) {
				return category
			}
		}
	}
	return ""
}
