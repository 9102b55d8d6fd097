package calendar

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"availcal/internal/ics"
	appLog "availcal/internal/log"
	"availcal/internal/model"
)

// Aggregate loads every enabled source concurrently and concatenates the
// results in source-list order. A source that fails contributes nothing;
// Aggregate itself never fails.
func Aggregate(ctx context.Context, loader Loader, sources []model.CalendarSource) []model.CalendarEvent {
	enabled := make([]model.CalendarSource, 0, len(sources))
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	results := make([][]model.CalendarEvent, len(enabled))

	p := pool.New()
	for i, src := range enabled {
		p.Go(func() {
			results[i] = loadOne(ctx, loader, src)
		})
	}
	p.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]model.CalendarEvent, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}

func loadOne(ctx context.Context, loader Loader, src model.CalendarSource) (events []model.CalendarEvent) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			appLog.Warn("calendar source panicked", "id", src.ID, "panic", r)
			events = nil
		}
	}()

	events, err := loader.Load(ctx, src)
	if err != nil {
		appLog.Error("calendar source failed", err, "id", src.ID, "url", ics.RedactURL(src.URL))
		return nil
	}

	appLog.Info("calendar source loaded",
		"id", src.ID,
		"events", len(events),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return events
}
