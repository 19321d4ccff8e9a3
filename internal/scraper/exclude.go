package scraper

import (
	"strings"

	"golang.org/x/text/cases"
)

// TitleExcluded reports whether any excluded term appears in title.
// Matching is a case-folded substring test, so " rn," only matches the
// token with its surrounding punctuation.
func TitleExcluded(title string, excluded []string) bool {
	if title == "" || len(excluded) == 0 {
		return false
	}
	fold := cases.Fold()
	folded := fold.String(title)
	for _, term := range excluded {
		if term == "" {
			continue
		}
		if strings.Contains(folded, fold.String(term)) {
			return true
		}
	}
	return false
}
