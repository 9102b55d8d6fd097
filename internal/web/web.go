package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"availcal/internal/calendar"
	"availcal/internal/config"
	appLog "availcal/internal/log"
	"availcal/internal/model"
	"availcal/internal/view"
)

const maxBodyBytes = 64 << 10

// Server exposes the aggregated calendar, source toggles and view state
// over HTTP.
type Server struct {
	cfg      *config.Config
	ctrl     *calendar.Controller
	nav      *view.Navigator
	viewport *view.Viewport
	swipe    *view.Swipe
	now      func() time.Time

	router *mux.Router
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Config     *config.Config
	Controller *calendar.Controller
	Navigator  *view.Navigator
	Viewport   *view.Viewport
	// Now is the clock used for "today" highlighting. Defaults to time.Now.
	Now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{
		cfg:      d.Config,
		ctrl:     d.Controller,
		nav:      d.Navigator,
		viewport: d.Viewport,
		swipe:    view.NewSwipe(d.Navigator),
		now:      d.Now,
		router:   mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(logRequests)

	// Keep routes on the root router so a method mismatch is a 405.
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/sources", s.handleListSources).Methods(http.MethodGet)
	r.HandleFunc("/api/sources/{id}", s.handlePatchSource).Methods(http.MethodPatch)
	r.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/view", s.handleGetView).Methods(http.MethodGet)
	r.HandleFunc("/api/view", s.handleSetView).Methods(http.MethodPut)
	r.HandleFunc("/api/view/navigate", s.handleNavigate).Methods(http.MethodPost)
	r.HandleFunc("/api/view/menu", s.handleToggleMenu).Methods(http.MethodPost)
	r.HandleFunc("/api/viewport", s.handleViewport).Methods(http.MethodPost)
	r.HandleFunc("/api/touch", s.handleTouch).Methods(http.MethodPost)
	r.HandleFunc("/api/calendar", s.handleCalendar).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Sources())
}

type sourcePatch struct {
	Enabled     *bool `json:"enabled"`
	ShowDetails *bool `json:"show_details"`
}

// handlePatchSource toggles a source. Each changed field starts a new
// aggregation cycle in the background.
func (s *Server) handlePatchSource(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req sourcePatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil && req.ShowDetails == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.Enabled != nil {
		if err := s.ctrl.SetEnabled(id, *req.Enabled); err != nil {
			writeStatusError(w, err)
			return
		}
	}
	if req.ShowDetails != nil {
		if err := s.ctrl.SetShowDetails(id, *req.ShowDetails); err != nil {
			writeStatusError(w, err)
			return
		}
	}

	src, _ := s.ctrl.Source(id)
	writeJSON(w, http.StatusOK, src)
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events      []model.CalendarEvent `json:"events"`
	Loading     bool                  `json:"loading"`
	Generation  uint64                `json:"generation"`
	PublishedAt time.Time             `json:"published_at"`
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	st := s.ctrl.Status()
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:      s.ctrl.Events(),
		Loading:     st.Loading,
		Generation:  st.Generation,
		PublishedAt: st.PublishedAt,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.RefreshAsync()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Server) handleGetView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.nav.State())
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View model.View `json:"view"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.nav.SetView(req.View)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := view.ParseAction(req.Action)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	st, err := s.nav.Navigate(a)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleToggleMenu(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.nav.ToggleMenu())
}

// handleViewport feeds a client-reported width into the viewport observer
// the navigator is subscribed to.
func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width int `json:"width"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Width <= 0 {
		writeError(w, http.StatusBadRequest, "width must be positive")
		return
	}
	s.viewport.Publish(req.Width)
	writeJSON(w, http.StatusOK, s.nav.State())
}

type touchRequest struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
}

type touchResponse struct {
	Navigated bool            `json:"navigated"`
	Action    model.Action    `json:"action,omitempty"`
	State     model.ViewState `json:"state"`
}

// handleTouch forwards touch phases to the swipe recognizer. Only "end" can
// navigate.
func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	var req touchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := touchResponse{}
	switch strings.ToLower(req.Phase) {
	case "start":
		s.swipe.Start(req.X)
	case "move":
		s.swipe.Move(req.X)
	case "end":
		resp.Action, resp.Navigated = s.swipe.End()
	default:
		writeError(w, http.StatusBadRequest, "phase must be start, move or end")
		return
	}
	resp.State = s.nav.State()
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar returns the full widget parameter set for the current
// view state.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	props := view.BuildProps(s.nav.State(), s.ctrl.Sources(), s.ctrl.Events(), view.PropsOptions{
		Location:     s.cfg.Location(),
		Locale:       s.cfg.Locale,
		WeekStart:    s.cfg.WeekStartDay(),
		DayStart:     s.cfg.DayStart,
		DayEnd:       s.cfg.DayEnd,
		DefaultColor: s.cfg.DefaultColor,
		Now:          s.now,
	})
	props.Loading = s.ctrl.Loading()
	writeJSON(w, http.StatusOK, props)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}

// writeStatusError maps domain errors to HTTP status codes.
func writeStatusError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendar.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, view.ErrUnknownView), errors.Is(err, view.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}
