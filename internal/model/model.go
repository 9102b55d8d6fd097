package model

import "time"

// CalendarSource is one configured remote feed with its own display
// identity. Only Enabled and ShowDetails change after startup.
type CalendarSource struct {
	ID          string `json:"id"`
	URL         string `json:"-"`
	Color       string `json:"color"`
	Title       string `json:"title"`
	Enabled     bool   `json:"enabled"`
	ShowDetails bool   `json:"show_details"`
}

// CalendarEvent is a single displayable event instance. The whole list is
// rebuilt on every fetch cycle, so nothing here survives across cycles.
type CalendarEvent struct {
	SourceID string `json:"source_id"`
	UID      string `json:"uid"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	AllDay bool      `json:"all_day"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// View is the grid granularity.
type View string

const (
	ViewDay      View = "day"
	ViewWorkWeek View = "work_week"
	ViewWeek     View = "week"
	ViewMonth    View = "month"
	ViewAgenda   View = "agenda"
)

// Views lists every supported view in toolbar order.
var Views = []View{ViewMonth, ViewWeek, ViewWorkWeek, ViewDay, ViewAgenda}

func (v View) Valid() bool {
	switch v {
	case ViewDay, ViewWorkWeek, ViewWeek, ViewMonth, ViewAgenda:
		return true
	}
	return false
}

// Action is a navigation command.
type Action string

const (
	ActionPrev  Action = "PREV"
	ActionNext  Action = "NEXT"
	ActionToday Action = "TODAY"
)

// ViewState is what the calendar currently shows.
type ViewState struct {
	Date        time.Time `json:"date"`
	View        View      `json:"view"`
	MenuVisible bool      `json:"menu_visible"`
}
