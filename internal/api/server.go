// Package api exposes the dashboard over a local JSON/HTTP API.
//
// Routes are registered on an [http.ServeMux] with method patterns and the
// whole mux is wrapped in [observe.Middleware]. Errors are JSON objects of the
// form {"error": "..."}; unknown ids map to 404 and rejected combat events to
// 422.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrWong99/fearkeeper/internal/combat"
	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/focus"
	"github.com/MrWong99/fearkeeper/internal/gamestate"
	"github.com/MrWong99/fearkeeper/internal/health"
	"github.com/MrWong99/fearkeeper/internal/observe"
)

// maxBodyBytes caps request bodies. Content libraries are the largest
// payloads.
const maxBodyBytes = 4 << 20

// Server serves the dashboard API.
type Server struct {
	dash    *gamestate.Dashboard
	metrics *observe.Metrics
	health  *health.Handler
	feed    *focus.Feed
	promh   http.Handler
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics records request and focus-subscriber metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth serves /healthz and /readyz from h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithAllowedOrigins sets the origin patterns accepted by the focus feed.
func WithAllowedOrigins(patterns []string) Option {
	return func(s *Server) { s.feed.OriginPatterns = patterns }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.promh = h }
}

// New returns a server for d.
func New(d *gamestate.Dashboard, opts ...Option) *Server {
	s := &Server{
		dash: d,
		feed: focus.NewFeed(d.Tracker()),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.promh != nil {
		mux.Handle("GET /metrics", s.promh)
	}
	return observe.Middleware(s.metrics)(mux)
}

// Register adds the API and focus feed routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.getState)

	mux.HandleFunc("POST /api/adversaries", s.createAdversary)
	mux.HandleFunc("POST /api/adversaries/bulk", s.bulkCreateAdversaries)
	mux.HandleFunc("POST /api/adversaries/sort", s.sortAdversaries)
	mux.HandleFunc("PATCH /api/adversaries/{id}", s.updateAdversary)
	mux.HandleFunc("DELETE /api/adversaries/{id}", s.deleteAdversary)
	mux.HandleFunc("POST /api/adversaries/{id}/damage", s.damage)
	mux.HandleFunc("POST /api/adversaries/{id}/healing", s.healing)
	mux.HandleFunc("POST /api/adversaries/{id}/stress", s.stress)

	mux.HandleFunc("POST /api/environments", s.createEnvironment)
	mux.HandleFunc("PATCH /api/environments/{id}", s.updateEnvironment)
	mux.HandleFunc("DELETE /api/environments/{id}", s.deleteEnvironment)

	mux.HandleFunc("POST /api/countdowns", s.createCountdown)
	mux.HandleFunc("PATCH /api/countdowns/{id}", s.updateCountdown)
	mux.HandleFunc("DELETE /api/countdowns/{id}", s.deleteCountdown)
	mux.HandleFunc("POST /api/countdowns/{id}/advance", s.advanceCountdown)

	mux.HandleFunc("PUT /api/settings/fear", s.putFear)
	mux.HandleFunc("PUT /api/settings/party-size", s.putPartySize)

	mux.HandleFunc("POST /api/encounters", s.saveEncounter)
	mux.HandleFunc("PATCH /api/encounters/{id}", s.renameEncounter)
	mux.HandleFunc("POST /api/encounters/{id}/load", s.loadEncounter)
	mux.HandleFunc("DELETE /api/encounters/{id}", s.deleteEncounter)

	mux.HandleFunc("GET /api/custom/search", s.searchCustom)
	mux.HandleFunc("POST /api/custom/import", s.importCustom)
	mux.HandleFunc("POST /api/custom/{kind}", s.createCustom)
	mux.HandleFunc("PATCH /api/custom/{kind}/{id}", s.updateCustom)
	mux.HandleFunc("DELETE /api/custom/{kind}/{id}", s.deleteCustom)

	mux.HandleFunc("PUT /api/focus", s.putFocus)
	mux.HandleFunc("DELETE /api/focus", s.deleteFocus)
	mux.HandleFunc("GET /ws/focus", s.focusFeed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeResolveError maps core errors onto status codes.
func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, combat.ErrMinionHealing):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func notFound(w http.ResponseWriter, what, id string) {
	writeError(w, http.StatusNotFound, what+" "+id+" not found")
}

// decode reads a JSON body into dst. It writes a 400 response and reports
// false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// readPatch reads a JSON object body for a partial update of a T. The
// returned mutator unmarshals the body over the current value, so only the
// fields present change. It writes a 400 response and reports false when the
// body is not an object or does not fit T.
func readPatch[T any](w http.ResponseWriter, r *http.Request) (func(*T), bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return nil, false
	}
	var probe T
	if err := json.Unmarshal(body, &probe); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	return func(v *T) { _ = json.Unmarshal(body, v) }, true
}
