package queue

import (
	"testing"
	"time"

	"bookscout/app/classifier"
	"bookscout/app/feed"
)

func testRecord(episodeType classifier.EpisodeType) Record {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewRecord(
		feed.Item{ID: "ep-1", Title: "Widgets Inc", Link: "https://example.com/ep-1", PublishedAt: now},
		classifier.Classification{Type: episodeType, Confidence: 0.75},
		now,
	)
}

func TestNewRecordIsImmediatelyEligible(t *testing.T) {
	rec := testRecord(classifier.TypeRegular)

	if rec.ProcessAfter.After(rec.DetectedAt) {
		t.Error("Expected new record to be eligible immediately")
	}
	if rec.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got: %d", rec.RetryCount)
	}
}

func TestFailRequeuesWithDelay(t *testing.T) {
	rec := testRecord(classifier.TypeRegular)
	now := rec.DetectedAt

	disposition := Fail(&rec, now)

	if disposition != DispositionRequeued {
		t.Fatalf("Expected requeued, got: %s", disposition)
	}
	if rec.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got: %d", rec.RetryCount)
	}

	expected := now.Add(RequeueDelay)
	if !rec.ProcessAfter.Equal(expected) {
		t.Errorf("Expected processAfter %s, got: %s", expected, rec.ProcessAfter)
	}
}

func TestFailTerminatesAfterCeiling(t *testing.T) {
	rec := testRecord(classifier.TypeRegular)
	now := rec.DetectedAt

	// The queue never grows unboundedly for a single episode: after
	// the retry ceiling the record is abandoned.
	requeues := 0
	for i := 0; i < 10; i++ {
		if Fail(&rec, now) == DispositionAbandoned {
			break
		}
		requeues++
	}

	if requeues != MaxRetries {
		t.Errorf("Expected %d requeues before abandonment, got: %d", MaxRetries, requeues)
	}
}

func TestFailAbandonsInterviewFast(t *testing.T) {
	rec := testRecord(classifier.TypeInterview)
	now := rec.DetectedAt

	if disposition := Fail(&rec, now); disposition != DispositionRequeued {
		t.Fatalf("Expected first failure to requeue, got: %s", disposition)
	}
	if disposition := Fail(&rec, now); disposition != DispositionAbandoned {
		t.Fatalf("Expected second failure to abandon interview, got: %s", disposition)
	}
}

func TestFailUnknownUsesGenericCeiling(t *testing.T) {
	rec := testRecord(classifier.TypeUnknown)
	now := rec.DetectedAt

	requeues := 0
	for i := 0; i < 10; i++ {
		if Fail(&rec, now) == DispositionAbandoned {
			break
		}
		requeues++
	}

	if requeues != MaxRetries {
		t.Errorf("Expected generic ceiling for unknown episodes, got: %d requeues", requeues)
	}
}

func TestReady(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	eligible := testRecord(classifier.TypeRegular)
	eligible.ProcessAfter = now.Add(-time.Minute)

	delayed := testRecord(classifier.TypeRegular)
	delayed.Episode.ID = "ep-2"
	delayed.ProcessAfter = now.Add(time.Hour)

	ready, waiting := Ready([]Record{eligible, delayed}, now)

	if len(ready) != 1 || ready[0].Episode.ID != "ep-1" {
		t.Errorf("Expected ep-1 to be ready, got: %v", ready)
	}
	if len(waiting) != 1 || waiting[0].Episode.ID != "ep-2" {
		t.Errorf("Expected ep-2 to be waiting, got: %v", waiting)
	}
}
