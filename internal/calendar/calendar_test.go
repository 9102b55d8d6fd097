package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availcal/internal/ics"
	"availcal/internal/model"
)

// fakeLoader returns canned events per source id. A source listed in
// gates blocks until its channel is closed.
type fakeLoader struct {
	mu     sync.Mutex
	events map[string][]model.CalendarEvent
	errs   map[string]error
	gates  map[string]chan struct{}
	calls  []string
}

func (f *fakeLoader) Load(ctx context.Context, src model.CalendarSource) ([]model.CalendarEvent, error) {
	f.mu.Lock()
	f.calls = append(f.calls, src.ID)
	gate := f.gates[src.ID]
	events, err := f.events[src.ID], f.errs[src.ID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func ev(source, title string) model.CalendarEvent {
	return model.CalendarEvent{SourceID: source, Title: title}
}

func titles(events []model.CalendarEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Title)
	}
	return out
}

func TestAggregateKeepsSourceOrderAndSkipsDisabled(t *testing.T) {
	slow := make(chan struct{})
	loader := &fakeLoader{
		events: map[string][]model.CalendarEvent{
			"a": {ev("a", "a1"), ev("a", "a2")},
			"b": {ev("b", "b1")},
			"c": {ev("c", "c1")},
		},
		gates: map[string]chan struct{}{"a": slow},
	}
	sources := []model.CalendarSource{
		{ID: "a", Enabled: true},
		{ID: "b", Enabled: false},
		{ID: "c", Enabled: true},
	}

	// "a" finishes last but still comes first.
	time.AfterFunc(20*time.Millisecond, func() { close(slow) })
	got := Aggregate(context.Background(), loader, sources)

	assert.Equal(t, []string{"a1", "a2", "c1"}, titles(got))
	assert.NotContains(t, loader.calls, "b")
}

func TestAggregatePartialFailure(t *testing.T) {
	loader := &fakeLoader{
		events: map[string][]model.CalendarEvent{"ok": {ev("ok", "fine")}},
		errs:   map[string]error{"down": errors.New("connection refused")},
	}
	sources := []model.CalendarSource{
		{ID: "down", Enabled: true},
		{ID: "ok", Enabled: true},
	}

	got := Aggregate(context.Background(), loader, sources)

	assert.Equal(t, []string{"fine"}, titles(got))
}

type panicLoader struct{}

func (panicLoader) Load(context.Context, model.CalendarSource) ([]model.CalendarEvent, error) {
	panic("parser exploded")
}

func TestAggregateRecoversPanic(t *testing.T) {
	got := Aggregate(context.Background(), panicLoader{}, []model.CalendarSource{{ID: "x", Enabled: true}})
	assert.Empty(t, got)
}

func TestToEventsDetailPolicy(t *testing.T) {
	instances := []ics.Instance{
		{UID: "1", Summary: "Dentist", Description: "cleaning", Location: "Main St"},
		{UID: "2", Summary: "Call"},
	}

	hidden := ToEvents(model.CalendarSource{ID: "h", Title: "Busy"}, instances)
	for _, e := range hidden {
		assert.Equal(t, "Busy", e.Title)
		assert.Empty(t, e.Description)
		assert.Empty(t, e.Location)
		assert.Equal(t, "h", e.SourceID)
	}

	shown := ToEvents(model.CalendarSource{ID: "s", Title: "Busy", ShowDetails: true}, instances)
	assert.Equal(t, "Dentist", shown[0].Title)
	assert.Equal(t, "cleaning", shown[0].Description)
	assert.Equal(t, "Main St", shown[0].Location)
	assert.Equal(t, "Call", shown[1].Title)
	assert.Empty(t, shown[1].Description)
	assert.Empty(t, shown[1].Location)
}

func TestControllerPublishesAndFiltersDisabled(t *testing.T) {
	loader := &fakeLoader{events: map[string][]model.CalendarEvent{
		"a": {ev("a", "a1")},
		"b": {ev("b", "b1")},
	}}
	c := NewController(loader, []model.CalendarSource{
		{ID: "a", Enabled: true, ShowDetails: true},
		{ID: "b", Enabled: true, ShowDetails: true},
	})

	c.Start(context.Background())
	assert.Equal(t, []string{"a1", "b1"}, titles(c.Events()))
	assert.False(t, c.Loading())

	require.NoError(t, c.SetEnabled("b", false))
	// Filtered immediately, before the new cycle publishes.
	assert.Equal(t, []string{"a1"}, titles(c.Events()))
	c.Wait()
	assert.Equal(t, []string{"a1"}, titles(c.Events()))
	assert.Equal(t, uint64(2), c.Status().Generation)

	assert.ErrorIs(t, c.SetEnabled("nope", true), ErrUnknownSource)
}

func TestControllerUnchangedToggleDoesNotRefresh(t *testing.T) {
	loader := &fakeLoader{}
	c := NewController(loader, []model.CalendarSource{{ID: "a", Enabled: true}})
	c.Start(context.Background())

	require.NoError(t, c.SetEnabled("a", true))
	c.Wait()

	assert.Equal(t, uint64(1), c.Status().Generation)
}

func TestControllerDiscardsStaleGeneration(t *testing.T) {
	gate := make(chan struct{})
	loader := &fakeLoader{
		events: map[string][]model.CalendarEvent{"a": {ev("a", "hidden")}},
		gates:  map[string]chan struct{}{"a": gate},
	}
	c := NewController(loader, []model.CalendarSource{{ID: "a", Enabled: true, Title: "A", ShowDetails: true}})

	staleDone := make(chan bool)
	go func() { staleDone <- c.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return loader.callCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, c.Loading())

	// Second cycle must not be held by the gate.
	loader.mu.Lock()
	loader.gates = nil
	loader.events = map[string][]model.CalendarEvent{"a": {ev("a", "fresh")}}
	loader.mu.Unlock()

	assert.True(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"fresh"}, titles(c.Events()))

	close(gate)
	assert.False(t, <-staleDone)
	assert.Equal(t, []string{"fresh"}, titles(c.Events()))
	assert.False(t, c.Loading())
}

func TestControllerNoSources(t *testing.T) {
	c := NewController(&fakeLoader{}, nil)
	c.Start(context.Background())

	assert.Empty(t, c.Events())
	assert.False(t, c.Loading())
}

func TestControllerShowDetailsToggle(t *testing.T) {
	c := NewController(&fakeLoader{}, []model.CalendarSource{{ID: "a", Enabled: true}})
	c.Start(context.Background())

	require.NoError(t, c.SetShowDetails("a", true))
	c.Wait()

	src, ok := c.Source("a")
	require.True(t, ok)
	assert.True(t, src.ShowDetails)
}

func TestControllerHidesDetailsBeforeRefetch(t *testing.T) {
	therapy := model.CalendarEvent{SourceID: "a", Title: "Therapy", Location: "Clinic", Description: "room 4"}
	loader := &fakeLoader{events: map[string][]model.CalendarEvent{"a": {therapy}}}
	c := NewController(loader, []model.CalendarSource{{ID: "a", Title: "Busy", Enabled: true, ShowDetails: true}})
	c.Start(context.Background())
	require.Equal(t, []string{"Therapy"}, titles(c.Events()))

	// Hold the refetch so the old detailed snapshot stays published.
	gate := make(chan struct{})
	loader.mu.Lock()
	loader.gates = map[string]chan struct{}{"a": gate}
	loader.mu.Unlock()

	require.NoError(t, c.SetShowDetails("a", false))
	require.Eventually(t, func() bool { return loader.callCount() == 2 }, time.Second, time.Millisecond)
	assert.True(t, c.Loading())

	got := c.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "Busy", got[0].Title)
	assert.Empty(t, got[0].Location)
	assert.Empty(t, got[0].Description)

	close(gate)
	c.Wait()
	assert.Equal(t, []string{"Busy"}, titles(c.Events()))
}

const feedA = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:lunch\r\nSUMMARY:Lunch\r\nDTSTART:20261019T120000Z\r\nDTEND:20261019T130000Z\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const feedB = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:private\r\nSUMMARY:Therapy\r\nLOCATION:Clinic\r\nDTSTART:20261019T140000Z\r\nDTEND:20261019T150000Z\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestFeedLoaderScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/a.ics"):
			// Finish last to show completion order does not matter.
			time.Sleep(20 * time.Millisecond)
			_, _ = w.Write([]byte(feedA))
		case strings.HasSuffix(r.URL.Path, "/b.ics"):
			_, _ = w.Write([]byte(feedB))
		default:
			http.Error(w, "gone", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	loader := NewFeedLoader(ics.NewFetcherWithClient(srv.Client()), time.UTC, 30, 30)
	loader.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }

	sources := []model.CalendarSource{
		{ID: "a", URL: srv.URL + "/a.ics", Title: "A", Enabled: true, ShowDetails: true},
		{ID: "b", URL: srv.URL + "/b.ics", Title: "Busy", Enabled: true, ShowDetails: false},
		{ID: "broken", URL: srv.URL + "/broken.ics", Title: "X", Enabled: true},
	}

	got := Aggregate(context.Background(), loader, sources)
	require.Len(t, got, 2)
	assert.Equal(t, "Lunch", got[0].Title)
	assert.Equal(t, "a", got[0].SourceID)
	assert.Equal(t, "Busy", got[1].Title)
	assert.Empty(t, got[1].Location)
	assert.Equal(t, time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC), got[1].Start)
}

func TestFeedLoaderKeepsSingleEventsOutsideWindow(t *testing.T) {
	const feed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:june\r\nSUMMARY:Offsite\r\nDTSTART:20260601T090000Z\r\nDTEND:20260601T170000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	loader := NewFeedLoader(ics.NewFetcherWithClient(srv.Client()), time.UTC, 31, 90)
	loader.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }

	got, err := loader.Load(context.Background(), model.CalendarSource{ID: "a", URL: srv.URL + "/a.ics", ShowDetails: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Offsite", got[0].Title)
	assert.Equal(t, time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC), got[0].Start)
}
