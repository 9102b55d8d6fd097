package calendar

import (
	"context"
	"errors"
	"sync"
	"time"

	appLog "availcal/internal/log"
	"availcal/internal/model"
)

// ErrUnknownSource is returned when a toggle names a source id that does
// not exist.
var ErrUnknownSource = errors.New("unknown calendar source")

// Status describes the controller's published snapshot.
type Status struct {
	Loading     bool      `json:"loading"`
	Generation  uint64    `json:"generation"`
	PublishedAt time.Time `json:"published_at"`
	EventCount  int       `json:"event_count"`
	SourceCount int       `json:"source_count"`
}

// Controller owns the source list and the published event snapshot.
//
// Every aggregation cycle is tagged with a generation number. Only the
// newest generation may publish; results of a superseded cycle are dropped.
// Readers always see a complete snapshot because publishing swaps the
// whole slice.
type Controller struct {
	loader Loader

	mu          sync.RWMutex
	baseCtx     context.Context
	sources     []model.CalendarSource
	events      []model.CalendarEvent
	generation  uint64 // last started
	published   uint64 // last published
	publishedAt time.Time

	inflight sync.WaitGroup
}

// NewController creates a Controller over sources. The slice is copied.
func NewController(loader Loader, sources []model.CalendarSource) *Controller {
	cp := make([]model.CalendarSource, len(sources))
	copy(cp, sources)
	return &Controller{
		loader:  loader,
		baseCtx: context.Background(),
		sources: cp,
		events:  []model.CalendarEvent{},
	}
}

// Start runs the initial cycle and remembers ctx as the parent of cycles
// triggered later by source changes.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	c.Refresh(ctx)
}

// Refresh runs one aggregation cycle synchronously and reports whether its
// result was published.
func (c *Controller) Refresh(ctx context.Context) bool {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	sources := make([]model.CalendarSource, len(c.sources))
	copy(sources, c.sources)
	c.mu.Unlock()

	if len(sources) == 0 {
		appLog.Warn("no calendar sources configured; nothing to display")
	}

	appLog.Debug("aggregation cycle start", "generation", gen, "sources", len(sources))
	events := Aggregate(ctx, c.loader, sources)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		appLog.Info("discarding stale aggregation result", "generation", gen, "current", c.generation)
		return false
	}
	c.events = events
	c.published = gen
	c.publishedAt = time.Now()

	appLog.Info("aggregation cycle published", "generation", gen, "events", len(events))
	return true
}

// RefreshAsync starts a cycle in the background under the Start context.
func (c *Controller) RefreshAsync() {
	c.mu.RLock()
	ctx := c.baseCtx
	c.mu.RUnlock()

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.Refresh(ctx)
	}()
}

// Wait blocks until every cycle started by RefreshAsync has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// SetEnabled changes a source's visibility and starts a new cycle.
func (c *Controller) SetEnabled(id string, enabled bool) error {
	return c.update(id, func(s *model.CalendarSource) { s.Enabled = enabled })
}

// SetShowDetails changes a source's detail policy and starts a new cycle.
func (c *Controller) SetShowDetails(id string, show bool) error {
	return c.update(id, func(s *model.CalendarSource) { s.ShowDetails = show })
}

func (c *Controller) update(id string, fn func(*model.CalendarSource)) error {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return ErrUnknownSource
	}
	before := c.sources[i]
	fn(&c.sources[i])
	changed := before != c.sources[i]
	c.mu.Unlock()

	if changed {
		appLog.Info("calendar source updated", "id", id)
		c.RefreshAsync()
	}
	return nil
}

func (c *Controller) indexOf(id string) int {
	for i := range c.sources {
		if c.sources[i].ID == id {
			return i
		}
	}
	return -1
}

// Sources returns a copy of the source list.
func (c *Controller) Sources() []model.CalendarSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.CalendarSource, len(c.sources))
	copy(out, c.sources)
	return out
}

// Source looks up a single source by id.
func (c *Controller) Source(id string) (model.CalendarSource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.sources[i], true
	}
	return model.CalendarSource{}, false
}

// Events returns the published snapshot restricted to sources that exist
// and are enabled right now. The current detail policy is applied on read,
// so a source switched to hidden details never exposes the titles of a
// snapshot fetched before the switch.
func (c *Controller) Events() []model.CalendarEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byID := make(map[string]model.CalendarSource, len(c.sources))
	for _, s := range c.sources {
		byID[s.ID] = s
	}

	out := make([]model.CalendarEvent, 0, len(c.events))
	for _, ev := range c.events {
		src, ok := byID[ev.SourceID]
		if !ok || !src.Enabled {
			continue
		}
		if !src.ShowDetails {
			ev.Title = src.Title
			ev.Description = ""
			ev.Location = ""
		}
		out = append(out, ev)
	}
	return out
}

// Loading reports whether the newest cycle has not published yet.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.published != c.generation
}

// Status returns a summary of the published snapshot.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Loading:     c.published != c.generation,
		Generation:  c.published,
		PublishedAt: c.publishedAt,
		EventCount:  len(c.events),
		SourceCount: len(c.sources),
	}
}
