package queue

import (
	"time"

	"bookscout/app/classifier"
	"bookscout/app/feed"
)

const (
	// MaxRetries is the generic requeue ceiling for any record.
	MaxRetries = 3

	// InterviewFailureLimit abandons interview-classified episodes
	// fast: they are not expected to have a sources document.
	InterviewFailureLimit = 1

	// RequeueDelay is how far processAfter is pushed on failure,
	// tolerating the lag between an episode going live and its
	// sources document appearing.
	RequeueDelay = 2 * time.Hour
)

// Record is one durable queue entry: an episode awaiting source
// document availability.
type Record struct {
	Episode           feed.Item                 `json:"episode"`
	Classification    classifier.Classification `json:"classification"`
	DetectedAt        time.Time                 `json:"detectedAt"`
	ProcessAfter      time.Time                 `json:"processAfter"`
	RetryCount        int                       `json:"retryCount"`
	HasSourceDocument *bool                     `json:"hasSourceDocument,omitempty"`
}

func NewRecord(episode feed.Item, c classifier.Classification, now time.Time) Record {
	return Record{
		Episode:        episode,
		Classification: c,
		DetectedAt:     now,
		ProcessAfter:   now,
	}
}

// Disposition is the outcome of a failed processing attempt.
type Disposition string

const (
	DispositionRequeued  Disposition = "requeued"
	DispositionAbandoned Disposition = "abandoned"
)

// Fail applies the scheduling state machine to a record whose
// processing attempt found no usable result. Requeued records come
// back mutated (retry count incremented, processAfter pushed out);
// abandoned records must be removed by the caller.
func Fail(rec *Record, now time.Time) Disposition {
	if rec.Classification.Type == classifier.TypeInterview && rec.RetryCount >= InterviewFailureLimit {
		return DispositionAbandoned
	}
	if rec.RetryCount >= MaxRetries {
		return DispositionAbandoned
	}

	rec.RetryCount++
	rec.ProcessAfter = now.Add(RequeueDelay)
	return DispositionRequeued
}

// Ready splits records into those eligible for work now and those
// still waiting out their delay.
func Ready(records []Record, now time.Time) (ready, waiting []Record) {
	for _, rec := range records {
		if rec.ProcessAfter.After(now) {
			waiting = append(waiting, rec)
		} else {
			ready = append(ready, rec)
		}
	}
	return ready, waiting
}
