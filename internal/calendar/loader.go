package calendar

import (
	"context"
	"fmt"
	"time"

	"availcal/internal/ics"
	"availcal/internal/model"
)

// Loader produces the events of a single source.
type Loader interface {
	Load(ctx context.Context, src model.CalendarSource) ([]model.CalendarEvent, error)
}

// Fetcher downloads a raw feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FeedLoader is the production Loader: fetch, parse, expand, then map.
type FeedLoader struct {
	fetcher Fetcher
	loc     *time.Location
	now     func() time.Time

	backfill time.Duration
	horizon  time.Duration
}

// NewFeedLoader builds a FeedLoader that expands recurrences from
// backfillDays before now to horizonDays after it, in loc.
func NewFeedLoader(f Fetcher, loc *time.Location, backfillDays, horizonDays int) *FeedLoader {
	if loc == nil {
		loc = time.Local
	}
	return &FeedLoader{
		fetcher:  f,
		loc:      loc,
		now:      time.Now,
		backfill: time.Duration(backfillDays) * 24 * time.Hour,
		horizon:  time.Duration(horizonDays) * 24 * time.Hour,
	}
}

// Load implements Loader.
func (l *FeedLoader) Load(ctx context.Context, src model.CalendarSource) ([]model.CalendarEvent, error) {
	body, err := l.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	parsed, err := ics.ParseICS(src.ID, body)
	if err != nil {
		return nil, err
	}

	now := l.now().In(l.loc)
	res, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: l.loc,
		RangeStart:      now.Add(-l.backfill),
		RangeEnd:        now.Add(l.horizon),
	})
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}

	return ToEvents(src, res.Instances), nil
}

// ToEvents maps instances to display events under the source's detail
// policy. A source without ShowDetails shows every event as an anonymous
// block labelled with the source title.
func ToEvents(src model.CalendarSource, instances []ics.Instance) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(instances))
	for _, inst := range instances {
		ev := model.CalendarEvent{
			SourceID: src.ID,
			UID:      inst.UID,
			AllDay:   inst.AllDay,
			Start:    inst.Start,
			End:      inst.End,
		}
		if src.ShowDetails {
			ev.Title = inst.Summary
			ev.Description = inst.Description
			ev.Location = inst.Location
		} else {
			ev.Title = src.Title
		}
		out = append(out, ev)
	}
	return out
}
