package catalog

import (
	"strings"
)

// categoryKeywords maps catalog categories to keywords matched against
// the resolved subjects and title, in priority order.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"biography", []string{"biography", "autobiography", "memoir", "founders", "life of"}},
	{"business", []string{"business", "management", "entrepreneurship", "finance", "economics", "investing", "strategy", "marketing"}},
	{"technology", []string{"technology", "computers", "software", "internet", "engineering", "silicon valley", "semiconductors"}},
	{"history", []string{"history", "historical", "war", "empire"}},
	{"science", []string{"science", "physics", "biology", "mathematics", "medicine"}},
	{"fiction", []string{"fiction", "novel", "fantasy", "science fiction"}},
}

// Categorize picks a single best-guess category from the resolved
// subjects, falling back to title keywords, then "other".
func Categorize(subjects []string, title string) string {
	haystack := strings.ToLower(strings.Join(subjects, " ") + " " + title)

	for _, group := range categoryKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(haystack, keyword) {
				return group.category
			}
		}
	}

	return "other"
}
