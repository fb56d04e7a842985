package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"bookscout/app/books"
	"bookscout/app/catalog"
	"bookscout/app/classifier"
	"bookscout/app/feed"
	"bookscout/app/history"
	"bookscout/app/notify"
	"bookscout/app/queue"
	"bookscout/app/sources"
	"bookscout/app/urlguard"
)

// Orchestrator ties the pipeline stages into one finite run: discover,
// classify, queue, resolve, extract, write, notify.
type Orchestrator struct {
	Reader      FeedReader
	Queue       *queue.Store
	Sources     *sources.Resolver
	Books       *books.Resolver
	Guard       *urlguard.Guard
	History     *history.Store
	Notifier    notify.Service
	CatalogPath string
	Concurrency int
	Lookback    time.Duration
	DryRun      bool

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// FeedReader is what the orchestrator needs from the feed stage.
type FeedReader interface {
	Fetch(ctx context.Context) ([]feed.Item, error)
}

// RunSummary reports what one invocation did.
type RunSummary struct {
	NewlyDetected int
	Processed     int
	Added         []catalog.Entry
	Unresolved    []string
	Requeued      int
	Abandoned     int
	Duration      time.Duration
}

type episodeResult struct {
	record       queue.Record
	success      bool
	observed     bool
	hasSourceDoc bool
	foundCount   int
	entries      []catalog.Entry
	unresolved   []string
	outcomes     []fetchOutcome
}

type fetchOutcome struct {
	domain string
	ok     bool
	kind   string
}

// Run executes one pipeline pass. State files are read up front and
// committed once by a single writer after all per-episode work joins,
// so concurrent episodes can never produce lost updates.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	now := o.now()
	started := now

	records, err := o.Queue.Load()
	if err != nil {
		return nil, o.fatal(ctx, err, "loading retry queue")
	}

	existingCatalog, err := catalog.Load(o.CatalogPath)
	if err != nil {
		return nil, o.fatal(ctx, err, "loading catalog")
	}

	items, err := o.Reader.Fetch(ctx)
	if err != nil {
		return nil, o.fatal(ctx, err, "fetching feed")
	}
	slog.Info("Feed refreshed", "items", len(items))

	lastCheck, err := o.Queue.LoadLastCheck()
	if err != nil {
		return nil, o.fatal(ctx, err, "loading last-check time")
	}
	if lastCheck.IsZero() {
		lastCheck = now.Add(-o.Lookback)
		slog.Info("No last-check time, using lookback window", "since", lastCheck)
	}

	records, newlyDetected := o.enqueueNewItems(records, items, lastCheck, now)

	ready, waiting := queue.Ready(records, now)
	slog.Info("Queue state", "ready", len(ready), "waiting", len(waiting), "newly_detected", newlyDetected)

	results := o.processReady(ctx, ready)

	summary := &RunSummary{NewlyDetected: newlyDetected, Processed: len(results)}
	var produced []catalog.Entry

	for _, res := range results {
		summary.Unresolved = append(summary.Unresolved, res.unresolved...)

		if res.success {
			produced = append(produced, res.entries...)
			slog.Info("Episode succeeded", "episode", res.record.Episode.Title, "entries", len(res.entries))
			continue
		}

		rec := res.record
		// Only semantic outcomes feed back into the classifier; a
		// transient fetch failure observed nothing.
		if res.observed {
			rec.Classification = classifier.Update(rec.Classification, res.hasSourceDoc, res.foundCount)
		}
		if res.observed || res.hasSourceDoc {
			hasDoc := res.hasSourceDoc
			rec.HasSourceDocument = &hasDoc
		}

		switch queue.Fail(&rec, now) {
		case queue.DispositionRequeued:
			waiting = append(waiting, rec)
			summary.Requeued++
			slog.Info("Episode requeued", "episode", rec.Episode.Title, "retry_count", rec.RetryCount, "process_after", rec.ProcessAfter)
		case queue.DispositionAbandoned:
			summary.Abandoned++
			slog.Warn("Episode abandoned", "episode", rec.Episode.Title, "retry_count", rec.RetryCount, "type", string(rec.Classification.Type))
		}
	}

	merged, added, dropped := catalog.Merge(existingCatalog, produced)
	summary.Added = added
	if len(dropped) > 0 {
		slog.Info("Duplicate entries dropped during merge", "count", len(dropped))
	}

	if o.DryRun {
		slog.Info("Dry run: skipping state writes", "would_add", len(added), "would_requeue", summary.Requeued)
	} else {
		if err := catalog.Save(o.CatalogPath, merged); err != nil {
			return nil, o.fatal(ctx, err, "saving catalog")
		}
		if err := o.Queue.Save(waiting); err != nil {
			return nil, o.fatal(ctx, err, "saving retry queue")
		}
		if err := o.Queue.SaveLastCheck(now); err != nil {
			return nil, o.fatal(ctx, err, "saving last-check time")
		}
	}

	o.recordOutcomes(ctx, results)
	summary.Duration = o.now().Sub(started)
	o.notifyRun(ctx, summary, waiting)

	slog.Info("Run complete",
		"added", len(summary.Added),
		"unresolved", len(summary.Unresolved),
		"requeued", summary.Requeued,
		"abandoned", summary.Abandoned,
		"duration", summary.Duration)

	return summary, nil
}

// enqueueNewItems diffs the feed against the last-check time and the
// queue, classifies new items, and enqueues the ones worth processing.
// A newly detected item replaces a stale queued duplicate.
func (o *Orchestrator) enqueueNewItems(records []queue.Record, items []feed.Item, lastCheck, now time.Time) ([]queue.Record, int) {
	queued := make(map[string]int, len(records))
	for i, rec := range records {
		queued[rec.Episode.ID] = i
	}

	detected := 0
	for _, item := range items {
		if !item.PublishedAt.After(lastCheck) {
			continue
		}

		c := classifier.Classify(item.Title, item.Description)
		recommendation := classifier.Recommend(c)

		slog.Info("New episode detected",
			"episode", item.Title,
			"type", string(c.Type),
			"confidence", c.Confidence,
			"reasoning", strings.Join(c.Reasoning, "; "))

		if c.ShouldSkip || !recommendation.ShouldProcess {
			slog.Info("Episode skipped by classification", "episode", item.Title, "type", string(c.Type))
			// A stale queued duplicate of a now-skipped episode goes too.
			if idx, ok := queued[item.ID]; ok {
				records = append(records[:idx], records[idx+1:]...)
				queued = reindex(records)
			}
			continue
		}

		rec := queue.NewRecord(item, c, now)
		rec.ProcessAfter = now.Add(recommendation.Delay)

		if idx, ok := queued[item.ID]; ok {
			records[idx] = rec
		} else {
			records = append(records, rec)
			queued[item.ID] = len(records) - 1
		}
		detected++
	}

	return records, detected
}

func reindex(records []queue.Record) map[string]int {
	m := make(map[string]int, len(records))
	for i, rec := range records {
		m[rec.Episode.ID] = i
	}
	return m
}

// processReady runs per-episode work with bounded concurrency. Each
// episode touches a disjoint candidate set, so only the collect step
// after the join touches shared state.
func (o *Orchestrator) processReady(ctx context.Context, ready []queue.Record) []episodeResult {
	if len(ready) == 0 {
		return nil
	}

	concurrency := o.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]episodeResult, len(ready))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, rec := range ready {
		wg.Add(1)
		go func(i int, rec queue.Record) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = o.processEpisode(ctx, rec)
		}(i, rec)
	}

	wg.Wait()
	return results
}

func (o *Orchestrator) processEpisode(ctx context.Context, rec queue.Record) episodeResult {
	res := episodeResult{record: rec}
	episode := rec.Episode

	docURL, err := o.Sources.FindSourceDocument(ctx, episode.Link)
	if errors.Is(err, sources.ErrNoSourceDocument) {
		slog.Info("No sources document yet", "episode", episode.Title)
		res.observed = true
		res.outcomes = append(res.outcomes, fetchOutcome{domain: domainOf(episode.Link), ok: true})
		return res
	}
	if err != nil {
		slog.Warn("Episode page fetch failed", "episode", episode.Title, "error", err)
		res.outcomes = append(res.outcomes, fetchOutcome{domain: domainOf(episode.Link), ok: false, kind: "transient-network"})
		return res
	}

	res.hasSourceDoc = true
	res.outcomes = append(res.outcomes, fetchOutcome{domain: domainOf(episode.Link), ok: true})

	refs, err := o.Sources.ExtractReferences(ctx, docURL)
	if err != nil {
		slog.Warn("Reference extraction failed", "episode", episode.Title, "doc", docURL, "error", err)
		res.outcomes = append(res.outcomes, fetchOutcome{domain: domainOf(docURL), ok: false, kind: "transient-network"})
		return res
	}
	res.foundCount = len(refs)
	res.observed = true
	res.outcomes = append(res.outcomes, fetchOutcome{domain: domainOf(docURL), ok: true})

	// The guard gates every candidate; invalid links are dropped and
	// extraction continues with the rest.
	valid := make([]string, 0, len(refs))
	sanitized := make(map[string]string, len(refs))
	for _, ref := range refs {
		validated := o.Guard.Validate(ref)
		if !validated.Valid {
			slog.Warn("Candidate link rejected by guard", "episode", episode.Title, "link", ref, "reason", validated.Reason)
			continue
		}
		for _, warning := range validated.Warnings {
			slog.Debug("Guard warning", "link", ref, "warning", warning)
		}
		valid = append(valid, ref)
		sanitized[ref] = validated.Sanitized
	}

	if len(valid) == 0 {
		slog.Info("No valid candidate links", "episode", episode.Title, "extracted", len(refs))
		return res
	}

	resolved := o.Books.ResolveBatch(ctx, valid)
	now := o.now()

	for _, item := range resolved {
		if item.Err != nil {
			slog.Warn("Candidate resolution failed", "link", item.Link, "error", item.Err)
			res.unresolved = append(res.unresolved, item.Link)
			continue
		}
		if item.Metadata == nil {
			slog.Info("Candidate discarded, no usable metadata", "link", item.Link)
			res.unresolved = append(res.unresolved, item.Link)
			continue
		}

		productURL := sanitized[item.Link]
		res.entries = append(res.entries, catalog.Entry{
			ID:         catalog.IDFromProductURL(productURL),
			Title:      item.Metadata.Title,
			Author:     item.Metadata.Author,
			CoverURL:   item.Metadata.CoverURL,
			ProductURL: productURL,
			Category:   catalog.Categorize(item.Metadata.Subjects, item.Metadata.Title),
			Episode: catalog.EpisodeRef{
				Name:          episode.Title,
				SeasonNumber:  episode.SeasonNumber,
				EpisodeNumber: episode.EpisodeNumber,
			},
			AddedAt:    now,
			Provenance: catalog.ProvenanceAutomated,
		})
	}

	res.success = len(res.entries) > 0
	return res
}

func (o *Orchestrator) recordOutcomes(ctx context.Context, results []episodeResult) {
	if o.History == nil {
		return
	}

	for _, res := range results {
		for _, outcome := range res.outcomes {
			if outcome.domain == "" {
				continue
			}
			if err := o.History.RecordOutcome(ctx, outcome.domain, outcome.ok, outcome.kind); err != nil {
				slog.Warn("Failed to record fetch outcome", "domain", outcome.domain, "error", err)
			}
		}
	}
}

func (o *Orchestrator) notifyRun(ctx context.Context, summary *RunSummary, waiting []queue.Record) {
	if o.DryRun {
		slog.Info("Dry run: skipping notification")
		return
	}

	notification := notify.Summary{
		Unresolved:     summary.Unresolved,
		EpisodesReady:  summary.Processed,
		EpisodesQueued: len(waiting),
		Duration:       summary.Duration,
	}
	for _, entry := range summary.Added {
		notification.AddedTitles = append(notification.AddedTitles, entry.Title)
	}

	if o.History != nil {
		flaky, err := o.History.FlakyDomains(ctx, 48*time.Hour, 2)
		if err != nil {
			slog.Warn("Failed to query flaky domains", "error", err)
		}
		for _, dh := range flaky {
			notification.FlakyDomains = append(notification.FlakyDomains,
				fmt.Sprintf("%s (%d failures)", dh.Domain, dh.Failures))
		}
	}

	if err := o.Notifier.NotifyRunCompleted(ctx, notification); err != nil {
		slog.Warn("Failed to deliver run notification", "error", err)
	}
}

// fatal aborts the run before any partial catalog write, surfacing the
// error through the notification channel on a best-effort basis.
func (o *Orchestrator) fatal(ctx context.Context, err error, stage string) error {
	wrapped := fmt.Errorf("failed %s: %w", stage, err)
	if o.Notifier != nil && !o.DryRun {
		if notifyErr := o.Notifier.NotifyError(ctx, wrapped, stage); notifyErr != nil {
			slog.Warn("Failed to deliver error notification", "error", notifyErr)
		}
	}
	return wrapped
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
