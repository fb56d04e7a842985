package books

import "testing"

func TestPickDocPrefersExactTitleMatch(t *testing.T) {
	docs := []openLibraryDoc{
		{Title: "The Widget Makers: Special Anniversary Edition"},
		{Title: "The Widget Makers"},
	}

	doc := pickDoc(docs, "the widget makers")
	if doc == nil || doc.Title != "The Widget Makers" {
		t.Errorf("Expected exact title match to win, got: %+v", doc)
	}
}

func TestPickDocFallsBackToFirstHit(t *testing.T) {
	docs := []openLibraryDoc{
		{Title: "First Hit"},
		{Title: "Second Hit"},
	}

	doc := pickDoc(docs, "no such title")
	if doc == nil || doc.Title != "First Hit" {
		t.Errorf("Expected first hit, got: %+v", doc)
	}

	doc = pickDoc(docs, "")
	if doc == nil || doc.Title != "First Hit" {
		t.Errorf("Expected first hit without a title guess, got: %+v", doc)
	}
}

func TestPickDocEmpty(t *testing.T) {
	if doc := pickDoc(nil, "anything"); doc != nil {
		t.Errorf("Expected nil for no hits, got: %+v", doc)
	}
}

func TestCoverURL(t *testing.T) {
	doc := openLibraryDoc{CoverID: 12345}
	if got := doc.coverURL(); got != "https://covers.openlibrary.org/b/id/12345-M.jpg" {
		t.Errorf("Unexpected cover URL: %s", got)
	}

	doc = openLibraryDoc{}
	if got := doc.coverURL(); got != "" {
		t.Errorf("Expected empty cover URL without a cover id, got: %s", got)
	}
}
