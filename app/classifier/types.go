package classifier

import (
	"time"
)

type EpisodeType string

const (
	TypeRegular   EpisodeType = "regular"
	TypeInterview EpisodeType = "interview"
	TypeSpecial   EpisodeType = "special"
	TypeUnknown   EpisodeType = "unknown"
)

// Classification is derived purely from an episode's text. Reasoning
// records each rule that fired, in evaluation order.
type Classification struct {
	Type            EpisodeType `json:"type"`
	Confidence      float64     `json:"confidence"`
	Reasoning       []string    `json:"reasoning"`
	ShouldSkip      bool        `json:"shouldSkip"`
	ExpectedSources bool        `json:"expectedSources"`
}

// Recommendation maps a classification to scheduling policy.
type Recommendation struct {
	ShouldProcess bool
	Priority      int
	Delay         time.Duration
	MaxRetries    int
}
