package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codegangsta/negroni"
	"github.com/gorilla/mux"

	"evboard/internal/board"
	"evboard/internal/calendar"
	"evboard/internal/config"
	appLog "evboard/internal/log"
	"evboard/internal/metrics"
	"evboard/internal/model"
	"evboard/internal/pipeline"
	"evboard/internal/render"
)

// Server serves the board page, its form actions and a few JSON/ICS
// endpoints on top of one board.Board.
type Server struct {
	cfg     *config.Config
	debug   bool
	board   *board.Board
	metrics *metrics.Metrics
	router  *mux.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, b *board.Board, m *metrics.Metrics, debug bool) *Server {
	s := &Server{
		cfg:     cfg,
		debug:   debug,
		board:   b,
		metrics: m,
		router:  mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the full middleware chain: panic recovery, request
// metrics, optional basic auth, then the router.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}

	n := negroni.New()
	recovery := negroni.NewRecovery()
	recovery.PrintStack = s.debug
	n.Use(recovery)
	n.Use(s.metrics)
	n.UseHandler(h)
	return n
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호는 비활성화로 취급한다.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Evenemang", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "debug", s.debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("stopping HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/select", s.handleSelect).Methods(http.MethodPost)
	r.HandleFunc("/filters/clear", s.handleClearFilters).Methods(http.MethodPost)
	r.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)

	r.HandleFunc("/feed", s.handleFeed).Methods(http.MethodPost)
	r.HandleFunc("/feed/search", s.handleFeedSearch).Methods(http.MethodGet)

	r.HandleFunc("/saved.ics", s.handleSavedICS).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}.ics", s.handleEventICS).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}/attendees", s.handleAttendees).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}/attend", s.handleAttend).Methods(http.MethodPost)
	r.HandleFunc("/events/{id}/save", s.handleSave).Methods(http.MethodPost)
	r.HandleFunc("/events/{id}/delete", s.handleDelete).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

var filterKeys = []string{"category", "range", "sort", "q", "place", "date"}

// filtersFromQuery reads the filter form. ok is false when the request
// carries none of its fields, so a plain GET / keeps the current filters.
func filtersFromQuery(q url.Values) (model.FilterState, bool) {
	present := false
	for _, k := range filterKeys {
		if _, found := q[k]; found {
			present = true
			break
		}
	}
	if !present {
		return model.FilterState{}, false
	}
	return model.FilterState{
		Category:  q.Get("category"),
		DateRange: model.DateRange(q.Get("range")),
		Sort:      model.SortMode(q.Get("sort")),
		Query:     q.Get("q"),
		Place:     q.Get("place"),
		Date:      q.Get("date"),
	}.Normalized(), true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if f, ok := filtersFromQuery(q); ok {
		s.board.SetFilters(f)
	}
	showSaved := q.Get("saved") == "1"
	if showSaved {
		s.board.PruneSaved(r.Context())
	}
	s.renderPage(w, showSaved)
}

// renderPage projects the current state and writes it. The status message
// is shown once.
func (s *Server) renderPage(w http.ResponseWriter, showSaved bool) {
	v := board.Project(s.board.Snapshot(), s.board.Clock())
	v.ShowSaved = showSaved
	s.board.ClearStatus()

	var buf bytes.Buffer
	if err := render.Page(&buf, v); err != nil {
		appLog.Error("page render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func backToBoard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.board.Select(strings.TrimSpace(r.PostFormValue("id")))
	backToBoard(w, r)
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	s.board.ClearFilters()
	backToBoard(w, r)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.board.Reload(r.Context()); err != nil {
		appLog.Warn("manual reload failed", "err", err)
	}
	backToBoard(w, r)
}

func (s *Server) handleAttend(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	want := r.PostFormValue("want") != "0"
	s.board.SetAttendance(r.Context(), id, want)
	backToBoard(w, r)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.board.ToggleSaved(r.Context(), mux.Vars(r)["id"])
	backToBoard(w, r)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.board.DeleteEvent(r.Context(), mux.Vars(r)["id"])
	backToBoard(w, r)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.PostFormValue("on") == "0" {
		s.board.LeaveFeed()
		backToBoard(w, r)
		return
	}
	// 에러는 board 상태의 feed 메시지로 표시된다.
	_ = s.board.EnterFeed(r.Context(), r.PostFormValue("force") == "1")
	backToBoard(w, r)
}

func (s *Server) handleFeedSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if s.board.Snapshot().Mode != board.ModeFeed {
		_ = s.board.EnterFeed(r.Context(), false)
	}
	if err := s.board.SearchFeed(r.Context(), q); errors.Is(err, board.ErrStale) {
		appLog.Debug("feed search superseded", "query", q)
	}
	s.renderPage(w, false)
}

func (s *Server) handleAttendees(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rows, err := s.board.Attendees(r.Context(), id)
	if err != nil {
		appLog.Error("attendee list failed", err, "event", id)
		writeError(w, http.StatusBadGateway, "failed to load attendees")
		return
	}
	title := ""
	if ev, ok := s.board.Snapshot().Event(id); ok {
		title = ev.Title
	}

	var buf bytes.Buffer
	if err := render.Attendees(&buf, title, board.AttendeeRows(rows)); err != nil {
		appLog.Error("attendee render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render attendees")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleEventICS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ev, ok := s.board.Snapshot().Event(id)
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeICS(w, id+".ics", calendar.Export([]model.Event{ev}, s.board.Clock().Loc))
}

func (s *Server) handleSavedICS(w http.ResponseWriter, _ *http.Request) {
	st := s.board.Snapshot()
	var events []model.Event
	for _, ev := range st.Events {
		if st.Saved.Has(ev.ID) {
			events = append(events, ev)
		}
	}
	writeICS(w, "sparade.ics", calendar.Export(events, s.board.Clock().Loc))
}

func writeICS(w http.ResponseWriter, name, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events  []model.Event     `json:"events"`
	Count   int               `json:"count"`
	Filters model.FilterState `json:"filters"`
	Error   string            `json:"error,omitempty"`
}

// handleEvents returns the filtered, sorted list. Filters come from the
// query string when given, otherwise the board's current filters apply;
// the board state is not changed.
//
// GET /api/events?category=Music&range=week&sort=soonest
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	st := s.board.Snapshot()
	f := st.Filters
	if qf, ok := filtersFromQuery(r.URL.Query()); ok {
		f = qf
	}
	events := pipeline.Apply(st.Events, f, s.board.Clock())
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:  events,
		Count:   len(events),
		Filters: f,
		Error:   st.LoadErr,
	})
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
