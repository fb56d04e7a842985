package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

var interviewMarkers = []string{
	"interview",
	"a conversation with",
	"in conversation",
	"sits down with",
	"we sit down",
	"fireside",
	"q&a with",
}

var specialMarkers = []string{
	"holiday special",
	"live at",
	"live from",
	"live show",
	"announcement",
	"trailer",
	"bonus episode",
	"year in review",
	"listener questions",
}

var followupShowMarkers = []string{
	"acq2",
	"acq 2",
}

var regularShapePatterns = []*regexp.Regexp{
	// Short proper-noun title: a company or topic name, up to four words.
	regexp.MustCompile(`^[A-Z][\w&.'’-]*(?: [A-Z0-9][\w&.'’-]*){0,3}$`),
	regexp.MustCompile(`(?i)season\s+\d+,?\s+episode\s+\d+`),
	regexp.MustCompile(`(?i)\bpart\s+(?:[IVX]+|\d+)\b`),
	regexp.MustCompile(`(?i)\(with\b`),
}

// Classify assigns an episode type from title and description text
// alone. Rules are evaluated in a fixed order; the first category match
// wins, and every piece of evidence lands in Reasoning so the decision
// can be audited later.
func Classify(title, description string) Classification {
	text := strings.ToLower(title + " " + description)

	if strings.TrimSpace(title) == "" {
		return Classification{
			Type:            TypeUnknown,
			Confidence:      0.1,
			Reasoning:       []string{"episode has no title"},
			ShouldSkip:      false,
			ExpectedSources: false,
		}
	}

	if marker, ok := matchMarker(text, interviewMarkers); ok {
		return Classification{
			Type:            TypeInterview,
			Confidence:      0.9,
			Reasoning:       []string{fmt.Sprintf("matched interview marker %q", marker)},
			ShouldSkip:      true,
			ExpectedSources: false,
		}
	}

	if marker, ok := matchMarker(text, followupShowMarkers); ok {
		return Classification{
			Type:            TypeSpecial,
			Confidence:      0.85,
			Reasoning:       []string{fmt.Sprintf("matched follow-up show marker %q", marker)},
			ShouldSkip:      false,
			ExpectedSources: false,
		}
	}

	if marker, ok := matchMarker(text, specialMarkers); ok {
		return Classification{
			Type:            TypeSpecial,
			Confidence:      0.8,
			Reasoning:       []string{fmt.Sprintf("matched special marker %q", marker)},
			ShouldSkip:      false,
			ExpectedSources: false,
		}
	}

	for _, pattern := range regularShapePatterns {
		if pattern.MatchString(title) {
			return Classification{
				Type:            TypeRegular,
				Confidence:      0.75,
				Reasoning:       []string{fmt.Sprintf("title matches regular episode shape %q", pattern.String())},
				ShouldSkip:      false,
				ExpectedSources: true,
			}
		}
	}

	// Bias toward attempting extraction rather than silently skipping
	// shapes we have not seen before.
	return Classification{
		Type:            TypeRegular,
		Confidence:      0.3,
		Reasoning:       []string{"no classification rules matched, defaulting to regular"},
		ShouldSkip:      false,
		ExpectedSources: true,
	}
}

func matchMarker(text string, markers []string) (string, bool) {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return marker, true
		}
	}
	return "", false
}

// Recommend maps a classification onto scheduling policy for the retry
// queue.
func Recommend(c Classification) Recommendation {
	switch c.Type {
	case TypeInterview:
		return Recommendation{ShouldProcess: false, Priority: 0, Delay: 0, MaxRetries: 1}
	case TypeSpecial:
		return Recommendation{ShouldProcess: true, Priority: 2, Delay: 0, MaxRetries: 3}
	case TypeUnknown:
		return Recommendation{ShouldProcess: true, Priority: 2, Delay: 0, MaxRetries: 3}
	default:
		return Recommendation{ShouldProcess: true, Priority: 1, Delay: 0, MaxRetries: 3}
	}
}

// Update nudges a classification with the observed outcome of a
// processing attempt. An episode that was not expected to have a
// sources document but yielded one with results is reclassified as
// regular.
func Update(c Classification, hasSourceDoc bool, foundCount int) Classification {
	updated := c
	updated.Reasoning = append([]string(nil), c.Reasoning...)

	if c.ExpectedSources == hasSourceDoc {
		updated.Confidence = min(1.0, c.Confidence+0.1)
		updated.Reasoning = append(updated.Reasoning, "observed outcome matched expectation")
		return updated
	}

	if !c.ExpectedSources && hasSourceDoc && foundCount > 0 {
		updated.Type = TypeRegular
		updated.ExpectedSources = true
		updated.ShouldSkip = false
		updated.Confidence = 0.6
		updated.Reasoning = append(updated.Reasoning,
			fmt.Sprintf("reclassified to regular: sources document found with %d references", foundCount))
		return updated
	}

	updated.Confidence = max(0.1, c.Confidence-0.1)
	updated.Reasoning = append(updated.Reasoning, "observed outcome contradicted expectation")
	return updated
}
