package view

import "sync"

// ViewportObserver delivers viewport widths to subscribers. The returned
// function ends the subscription.
type ViewportObserver interface {
	Subscribe(fn func(width int)) (unsubscribe func())
}

// Viewport is an in-process ViewportObserver fed by Publish.
type Viewport struct {
	mu    sync.Mutex
	next  int
	subs  map[int]func(int)
	width int
}

func NewViewport() *Viewport {
	return &Viewport{subs: make(map[int]func(int))}
}

// Subscribe implements ViewportObserver.
func (v *Viewport) Subscribe(fn func(width int)) func() {
	v.mu.Lock()
	id := v.next
	v.next++
	v.subs[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
		})
	}
}

// Publish records width and notifies every subscriber.
func (v *Viewport) Publish(width int) {
	v.mu.Lock()
	v.width = width
	fns := make([]func(int), 0, len(v.subs))
	for _, fn := range v.subs {
		fns = append(fns, fn)
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(width)
	}
}

// Width is the last published width, 0 if none.
func (v *Viewport) Width() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width
}

// Subscribers reports how many subscriptions are live.
func (v *Viewport) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}
