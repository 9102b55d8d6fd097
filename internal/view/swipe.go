package view

import (
	"sync"

	"availcal/internal/model"
)

// SwipeThreshold is the horizontal distance in px a swipe must exceed.
const SwipeThreshold = 50.0

// Dispatcher receives the navigation produced by a swipe.
type Dispatcher interface {
	Navigate(a model.Action) (model.ViewState, error)
}

// Swipe turns horizontal touch sequences into PREV/NEXT.
type Swipe struct {
	d Dispatcher

	mu      sync.Mutex
	startX  float64
	lastX   float64
	started bool
	moved   bool
}

func NewSwipe(d Dispatcher) *Swipe {
	return &Swipe{d: d}
}

// Start records the touch-start X coordinate.
func (s *Swipe) Start(x float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startX = x
	s.started = true
	s.moved = false
}

// Move records the latest touch-move X coordinate.
func (s *Swipe) Move(x float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastX = x
	s.moved = true
}

// End finishes the gesture. A leftward swipe past the threshold dispatches
// NEXT, a rightward one PREV. State is cleared either way.
func (s *Swipe) End() (model.Action, bool) {
	s.mu.Lock()
	startX, lastX, complete := s.startX, s.lastX, s.started && s.moved
	s.startX, s.lastX, s.started, s.moved = 0, 0, false, false
	s.mu.Unlock()

	if !complete {
		return "", false
	}

	var a model.Action
	switch dx := startX - lastX; {
	case dx > SwipeThreshold:
		a = model.ActionNext
	case dx < -SwipeThreshold:
		a = model.ActionPrev
	default:
		return "", false
	}

	if _, err := s.d.Navigate(a); err != nil {
		return "", false
	}
	return a, true
}
