package books

// Tier records which fallback stage produced a metadata value.
type Tier string

const (
	TierOpenLibrary Tier = "openlibrary"
	TierPageScrape  Tier = "page-scrape"
	TierNone        Tier = "none"
)

// Metadata is a resolved bibliographic record. Transient: produced per
// resolution attempt, not persisted on its own.
type Metadata struct {
	Title      string
	Author     string
	CoverURL   string
	Subjects   []string
	SourceTier Tier
}

// Resolved pairs a candidate link with its resolution outcome.
type Resolved struct {
	Link     string
	Metadata *Metadata
	Err      error
}
