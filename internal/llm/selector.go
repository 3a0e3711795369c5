package llm

import (
	"regexp"
	"strings"

	"shopassist/pkg"
)

// selectionTag matches the trailing machine-readable line the reasoner is
// instructed to emit, e.g. "PRODUCT_IDS: p1, p2".
var selectionTag = regexp.MustCompile(`(?m)^\s*PRODUCT_IDS:\s*(.*)\s*$`)

// ExtractSelection maps the reasoner's free text back onto a concrete product
// subset. The tag line is stripped from the displayed text; candidate order
// is preserved. A missing tag never loses silently: all supplied candidates
// are treated as selected.
func ExtractSelection(text string, candidates []pkg.ProductCandidate) (string, []pkg.ProductCandidate) {
	if len(candidates) == 0 {
		return strings.TrimSpace(selectionTag.ReplaceAllString(text, "")), nil
	}

	matches := selectionTag.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text), candidates
	}

	// Use the last tag in case the model quoted one earlier in its prose.
	idList := matches[len(matches)-1][1]
	ids := splitIDs(idList)

	display := strings.TrimSpace(selectionTag.ReplaceAllString(text, ""))

	if len(ids) == 0 {
		return display, candidates
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	selected := make([]pkg.ProductCandidate, 0, len(ids))
	for _, c := range candidates {
		if _, ok := wanted[c.ProductID]; ok {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return display, candidates
	}
	return display, selected
}

func splitIDs(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			ids = append(ids, f)
		}
	}
	return ids
}
