package books

import (
	"context"
	"log/slog"
	"time"
)

// ResolveBatch resolves candidates in fixed-size groups with mandatory
// pauses so the upstream catalog API's rate limits are respected. The
// pauses only delay this episode's resolution; callers run episodes
// concurrently, so other episodes' extraction is never blocked.
func (r *Resolver) ResolveBatch(ctx context.Context, links []string) []Resolved {
	results := make([]Resolved, 0, len(links))

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			results = append(results, Resolved{Link: link, Err: err})
			continue
		}

		meta, err := r.Resolve(ctx, link)
		results = append(results, Resolved{Link: link, Metadata: meta, Err: err})

		if i == len(links)-1 {
			break
		}

		pause := r.ItemPause
		if (i+1)%r.BatchSize == 0 {
			pause = r.GroupPause
			slog.Debug("Resolution group complete, pausing", "resolved", i+1, "total", len(links))
		}
		sleepCtx(ctx, pause)
	}

	return results
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
