package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "availcal/internal/log"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone every instance is converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the instances a recurring series produces.
	// Non-recurring events are emitted regardless.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// Instance is one concrete occurrence of a VEVENT.
type Instance struct {
	SourceID string
	UID      string

	Summary     string
	Description string
	Location    string

	AllDay bool
	Start  time.Time
	End    time.Time
}

// ExpandResult wraps the instances and the UIDs whose series hit the cap.
type ExpandResult struct {
	Instances       []Instance
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed events into concrete instances. Single
// events pass through unbounded, RRULE series are expanded inside the
// configured window by rrule-go with EXDATE removal, and RECURRENCE-ID overrides replace the
// instance they point at. Output keeps the input's event order.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		}
	}

	out := make([]Instance, 0, len(events))
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			// Emitted through its base series.
			if !hasBase(events, ev.UID) {
				out = appendSingle(out, ev, nil, cfg)
			}
			continue
		}

		ov := overridesByUID[ev.UID]
		if ev.RawRRule == "" {
			out = appendSingle(out, ev, ov, cfg)
			continue
		}

		var hitCap bool
		out, hitCap = appendRecurring(out, ev, ov, cfg)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	result.Instances = out
	return result, nil
}

func hasBase(events []ParsedEvent, uid string) bool {
	for _, ev := range events {
		if ev.UID == uid && !ev.IsOverride {
			return true
		}
	}
	return false
}

// appendSingle emits a non-recurring event as is. The range only bounds
// recurrence expansion, so a single event is kept wherever it falls.
func appendSingle(out []Instance, ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []Instance {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	return append(out, makeInstance(ev, ev.Start, ev.End, cfg.DisplayLocation))
}

func appendRecurring(out []Instance, ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Instance, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		// Still show the first instance.
		return appendSingle(out, ev, overrides, cfg), false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(alignExDate(ex, ev))
	}

	loc := ev.Start.Location()
	dur := ev.End.Sub(ev.Start)

	// Widen the lower bound by the duration so instances that started
	// before the window but are still running are kept.
	occTimes := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			days := int(dur.Hours()/24 + 0.5)
			if days < 1 {
				days = 1
			}
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, loc)
			occEnd = occStart.AddDate(0, 0, days)
		} else {
			occEnd = occStart.Add(dur)
		}

		inst := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			inst = o
			occStart, occEnd = o.Start, o.End
		}
		if !timeRangesOverlap(occStart, occEnd, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeInstance(inst, occStart, occEnd, cfg.DisplayLocation))
	}

	return out, hitCap
}

// alignExDate moves a date-only EXDATE onto the series' own zone so it
// compares equal to the generated instance.
func alignExDate(ex time.Time, ev ParsedEvent) time.Time {
	if ev.AllDay {
		return time.Date(ex.Year(), ex.Month(), ex.Day(), 0, 0, 0, 0, ev.Start.Location())
	}
	return ex.In(ev.Start.Location())
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Equal(start) || (ov.AllDay && sameDate(*ov.Recurrence, start)) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// makeInstance converts start/end into displayLoc. All-day instances keep
// their calendar date rather than being shifted across midnight.
func makeInstance(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) Instance {
	inst := Instance{
		SourceID:    ev.SourceID,
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
	}
	if ev.AllDay {
		inst.Start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, displayLoc)
		inst.End = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, displayLoc)
	} else {
		inst.Start = start.In(displayLoc)
		inst.End = end.In(displayLoc)
	}
	return inst
}

// timeRangesOverlap treats both ranges as half-open; a zero-length event
// counts when its instant falls inside the window.
func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
