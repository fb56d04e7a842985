package books

import (
	"strings"
	"unicode/utf8"
)

// titleBlocklist holds known false positives: generic links that get
// mistaken for books during extraction.
var titleBlocklist = []string{
	"amazon",
	"amazon.com",
	"kindle",
	"audible",
	"prime video",
	"click here",
	"sources",
}

// validateMetadata rejects implausible resolved entries. An empty
// return means the metadata passed the gate.
func validateMetadata(meta *Metadata) string {
	title := strings.TrimSpace(meta.Title)

	if utf8.RuneCountInString(title) < 3 {
		return "title implausibly short"
	}

	lowerTitle := strings.ToLower(title)
	if strings.Contains(lowerTitle, "unknown") {
		return "title contains unknown sentinel"
	}
	if strings.Contains(strings.ToLower(meta.Author), "unknown") {
		return "author contains unknown sentinel"
	}

	for _, blocked := range titleBlocklist {
		if lowerTitle == blocked {
			return "title matches false-positive blocklist"
		}
	}

	return ""
}
