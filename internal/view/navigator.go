package view

import (
	"errors"
	"strings"
	"sync"
	"time"

	appLog "availcal/internal/log"
	"availcal/internal/model"
)

var (
	ErrUnknownView   = errors.New("unknown view")
	ErrUnknownAction = errors.New("unknown navigation action")
)

// Options configures a Navigator.
type Options struct {
	// Now is the clock used by TODAY. Defaults to time.Now.
	Now func() time.Time
	// Location is the display zone. Defaults to time.Local.
	Location *time.Location
	// Breakpoint is the viewport width (px) below which narrow views apply.
	Breakpoint int
	// View is the initial view. Defaults to week.
	View model.View
}

// Navigator owns the current date and view.
type Navigator struct {
	now        func() time.Time
	loc        *time.Location
	breakpoint int

	mu        sync.Mutex
	state     model.ViewState
	lastWidth int
	unsubs    []func()
}

// NewNavigator creates a Navigator positioned at today.
func NewNavigator(opts Options) *Navigator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if !opts.View.Valid() {
		opts.View = model.ViewWeek
	}
	n := &Navigator{
		now:        opts.Now,
		loc:        opts.Location,
		breakpoint: opts.Breakpoint,
	}
	n.state = model.ViewState{
		Date: n.today(),
		View: opts.View,
	}
	return n
}

func (n *Navigator) today() time.Time {
	return n.now().In(n.loc)
}

// State returns a copy of the current view state.
func (n *Navigator) State() model.ViewState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// ParseAction accepts PREV, NEXT and TODAY in any case.
func ParseAction(s string) (model.Action, error) {
	a := model.Action(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case model.ActionPrev, model.ActionNext, model.ActionToday:
		return a, nil
	}
	return "", ErrUnknownAction
}

// Navigate applies a PREV/NEXT/TODAY action.
func (n *Navigator) Navigate(a model.Action) (model.ViewState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch a {
	case model.ActionToday:
		n.state.Date = n.today()
	case model.ActionNext:
		n.state.Date = Step(n.state.Date, n.state.View, 1)
	case model.ActionPrev:
		n.state.Date = Step(n.state.Date, n.state.View, -1)
	default:
		return n.state, ErrUnknownAction
	}
	return n.state, nil
}

// SetView switches the active view.
func (n *Navigator) SetView(v model.View) (model.ViewState, error) {
	if !v.Valid() {
		return n.State(), ErrUnknownView
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.View = v
	return n.state, nil
}

// ToggleMenu flips the visible-menu flag.
func (n *Navigator) ToggleMenu() model.ViewState {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.MenuVisible = !n.state.MenuVisible
	return n.state
}

// HandleResize re-evaluates the view for a viewport width. Below the
// breakpoint week and month collapse to the three-day view; at or above it
// day and three-day widen to week. Agenda is left alone.
//
// A width equal to the previous one is ignored, even if the view was
// changed by hand in between: picking day on a wide screen sticks until
// the width actually changes.
func (n *Navigator) HandleResize(width int) model.ViewState {
	n.mu.Lock()
	defer n.mu.Unlock()

	if width <= 0 || width == n.lastWidth {
		return n.state
	}
	n.lastWidth = width

	before := n.state.View
	if width < n.breakpoint {
		if before == model.ViewWeek || before == model.ViewMonth {
			n.state.View = model.ViewWorkWeek
		}
	} else {
		if before == model.ViewDay || before == model.ViewWorkWeek {
			n.state.View = model.ViewWeek
		}
	}
	if n.state.View != before {
		appLog.Debug("viewport changed view", "width", width, "from", before, "to", n.state.View)
	}
	return n.state
}

// Observe subscribes HandleResize to obs until Close.
func (n *Navigator) Observe(obs ViewportObserver) {
	unsub := obs.Subscribe(func(width int) { n.HandleResize(width) })
	n.mu.Lock()
	n.unsubs = append(n.unsubs, unsub)
	n.mu.Unlock()
}

// Close releases every viewport subscription. Safe to call twice.
func (n *Navigator) Close() {
	n.mu.Lock()
	unsubs := n.unsubs
	n.unsubs = nil
	n.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Step moves date one unit of view in direction dir (+1 or -1). Day and
// agenda have no step.
func Step(date time.Time, v model.View, dir int) time.Time {
	switch v {
	case model.ViewMonth:
		return addMonthsClamped(date, dir)
	case model.ViewWeek:
		return date.AddDate(0, 0, 7*dir)
	case model.ViewWorkWeek:
		return date.AddDate(0, 0, 3*dir)
	default:
		return date
	}
}

// addMonthsClamped adds months, pinning the day to the target month's last
// day instead of overflowing (Jan 31 + 1 month = Feb 28).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
