package view

import (
	"time"

	"availcal/internal/model"
)

const (
	LayoutTitle    = "title"
	LayoutDetailed = "detailed"

	agendaLength = 30 // days
)

// PropsOptions configures BuildProps.
type PropsOptions struct {
	Location     *time.Location
	Locale       string
	WeekStart    time.Weekday
	DayStart     string // HH:MM
	DayEnd       string // HH:MM
	DefaultColor string
	Now          func() time.Time
}

// EventProps is one event as the widget consumes it.
type EventProps struct {
	model.CalendarEvent
	Color  string `json:"color"`
	Layout string `json:"layout"`
}

// SourceProps is a legend entry with its visibility toggle state.
type SourceProps struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Color       string `json:"color"`
	Enabled     bool   `json:"enabled"`
	ShowDetails bool   `json:"show_details"`
}

// DayStyle is a per-day style override; days without one are omitted.
type DayStyle struct {
	Date            string `json:"date"` // YYYY-MM-DD
	ClassName       string `json:"class_name"`
	BackgroundColor string `json:"background_color,omitempty"`
}

// Range is a half-open [Start, End) interval.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Props is the full parameter set for a grid-calendar widget.
type Props struct {
	Events         []EventProps  `json:"events"`
	StartAccessor  string        `json:"start_accessor"`
	EndAccessor    string        `json:"end_accessor"`
	TitleAccessor  string        `json:"title_accessor"`
	AllDayAccessor string        `json:"all_day_accessor"`
	Sources        []SourceProps `json:"sources"`
	Views          []model.View  `json:"views"`
	View           model.View    `json:"view"`
	Date           time.Time     `json:"date"`
	Range          Range         `json:"range"`
	Culture        string        `json:"culture"`
	Messages       Messages      `json:"messages"`
	Label          string        `json:"label"`
	Min            string        `json:"min"`
	Max            string        `json:"max"`
	DayStyles      []DayStyle    `json:"day_styles"`
	MenuVisible    bool          `json:"menu_visible"`
	Loading        bool          `json:"loading"`
}

// BuildProps assembles widget parameters for state from the given sources
// and published events. Only events overlapping the visible range and
// belonging to an enabled source are included.
func BuildProps(state model.ViewState, sources []model.CalendarSource, events []model.CalendarEvent, opts PropsOptions) Props {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	date := state.Date.In(opts.Location)
	start, end := VisibleRange(date, state.View, opts.WeekStart)

	culture := Culture(opts.Locale)
	base, msgs := MatchMessages(culture)

	byID := make(map[string]model.CalendarSource, len(sources))
	legend := make([]SourceProps, 0, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
		legend = append(legend, SourceProps{
			ID:          s.ID,
			Title:       s.Title,
			Color:       colorOr(s.Color, opts.DefaultColor),
			Enabled:     s.Enabled,
			ShowDetails: s.ShowDetails,
		})
	}

	evs := make([]EventProps, 0, len(events))
	for _, ev := range events {
		src, ok := byID[ev.SourceID]
		if !ok || !src.Enabled {
			continue
		}
		if !overlaps(ev.Start, ev.End, start, end) {
			continue
		}
		layout := LayoutTitle
		if src.ShowDetails {
			layout = LayoutDetailed
		}
		evs = append(evs, EventProps{
			CalendarEvent: ev,
			Color:         colorOr(src.Color, opts.DefaultColor),
			Layout:        layout,
		})
	}

	return Props{
		Events:         evs,
		StartAccessor:  "start",
		EndAccessor:    "end",
		TitleAccessor:  "title",
		AllDayAccessor: "all_day",
		Sources:        legend,
		Views:          model.Views,
		View:           state.View,
		Date:           date,
		Range:          Range{Start: start, End: end},
		Culture:        culture.String(),
		Messages:       msgs,
		Label:          RangeLabel(base, state.View, start, end),
		Min:            opts.DayStart,
		Max:            opts.DayEnd,
		DayStyles:      DayStyles(start, end, opts.Now().In(opts.Location)),
		MenuVisible:    state.MenuVisible,
	}
}

// VisibleRange returns the half-open range a view shows around date.
// Month is padded to whole weeks starting on weekStart.
func VisibleRange(date time.Time, v model.View, weekStart time.Weekday) (time.Time, time.Time) {
	day := startOfDay(date)
	switch v {
	case model.ViewDay:
		return day, day.AddDate(0, 0, 1)
	case model.ViewWorkWeek:
		return day, day.AddDate(0, 0, 3)
	case model.ViewWeek:
		s := startOfWeek(day, weekStart)
		return s, s.AddDate(0, 0, 7)
	case model.ViewMonth:
		first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		next := first.AddDate(0, 1, 0)
		s := startOfWeek(first, weekStart)
		e := startOfWeek(next, weekStart)
		if e.Before(next) {
			e = e.AddDate(0, 0, 7)
		}
		return s, e
	default:
		return day, day.AddDate(0, 0, agendaLength)
	}
}

// DayStyles marks today and weekends inside [start, end).
func DayStyles(start, end, now time.Time) []DayStyle {
	today := startOfDay(now)
	out := make([]DayStyle, 0)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		switch {
		case sameDay(d, today):
			out = append(out, DayStyle{Date: d.Format(time.DateOnly), ClassName: "today", BackgroundColor: "#eaf6ff"})
		case d.Weekday() == time.Saturday || d.Weekday() == time.Sunday:
			out = append(out, DayStyle{Date: d.Format(time.DateOnly), ClassName: "weekend", BackgroundColor: "#f7f7f7"})
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(day time.Time, weekStart time.Weekday) time.Time {
	diff := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -diff)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func colorOr(c, def string) string {
	if c != "" {
		return c
	}
	return def
}
