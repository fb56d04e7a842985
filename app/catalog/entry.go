package catalog

import (
	"net/url"
	"time"

	"github.com/google/uuid"

	"bookscout/app/sources"
)

// Provenance records which pipeline path produced an entry.
const (
	ProvenanceAutomated = "automated"
	ProvenanceManual    = "manual"
	ProvenanceBackfill  = "backfill"
)

// EpisodeRef ties an entry back to the episode it was extracted from.
type EpisodeRef struct {
	Name          string `json:"name"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
}

// Entry is the unit written to the persisted catalog. The presentation
// layer consumes this JSON shape directly, so field names are part of
// the output contract.
type Entry struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Author     string     `json:"author,omitempty"`
	CoverURL   string     `json:"coverUrl,omitempty"`
	ProductURL string     `json:"productUrl"`
	Category   string     `json:"category"`
	Episode    EpisodeRef `json:"episode"`
	AddedAt    time.Time  `json:"addedAt"`
	Provenance string     `json:"provenance"`
}

// IDFromProductURL derives the stable external identifier for an
// entry: the product code embedded in the URL, or a generated fallback
// when the URL carries none (e.g. short links).
func IDFromProductURL(productURL string) string {
	if asin := sources.ASIN(productURL); asin != "" {
		return asin
	}
	if parsed, err := url.Parse(productURL); err == nil && parsed.Hostname() != "" {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(productURL)).String()
	}
	return uuid.NewString()
}
