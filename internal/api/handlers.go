package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/focus"
)

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

// ─────────────────────────────────────────────────────────────────────────────
// Adversaries
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) createAdversary(w http.ResponseWriter, r *http.Request) {
	var a entity.Adversary
	if !decode(w, r, &a) {
		return
	}
	if err := entity.ValidateAdversary(a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.dash.CreateAdversary(r.Context(), a))
}

func (s *Server) bulkCreateAdversaries(w http.ResponseWriter, r *http.Request) {
	var items []entity.Adversary
	if !decode(w, r, &items) {
		return
	}
	for _, a := range items {
		if err := entity.ValidateAdversary(a); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	created := s.dash.BulkCreateAdversaries(r.Context(), items)
	if created == nil {
		created = []entity.Adversary{}
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) sortAdversaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.SortAdversaries(r.Context()))
}

func (s *Server) updateAdversary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fn, ok := readPatch[entity.Adversary](w, r)
	if !ok {
		return
	}
	a, ok := s.dash.UpdateAdversary(r.Context(), id, fn)
	if !ok {
		notFound(w, "adversary", id)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) deleteAdversary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.dash.DeleteAdversary(r.Context(), id) {
		notFound(w, "adversary", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type amountRequest struct {
	Amount int `json:"amount"`
}

type deltaRequest struct {
	Delta int `json:"delta"`
}

func (s *Server) damage(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := s.dash.Damage(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) healing(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := s.dash.Heal(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) stress(w http.ResponseWriter, r *http.Request) {
	var req deltaRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := s.dash.Stress(r.Context(), r.PathValue("id"), req.Delta)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ─────────────────────────────────────────────────────────────────────────────
// Environments and countdowns
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) createEnvironment(w http.ResponseWriter, r *http.Request) {
	var e entity.Environment
	if !decode(w, r, &e) {
		return
	}
	if err := entity.ValidateEnvironment(e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.dash.CreateEnvironment(r.Context(), e))
}

func (s *Server) updateEnvironment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fn, ok := readPatch[entity.Environment](w, r)
	if !ok {
		return
	}
	e, ok := s.dash.UpdateEnvironment(r.Context(), id, fn)
	if !ok {
		notFound(w, "environment", id)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEnvironment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.dash.DeleteEnvironment(r.Context(), id) {
		notFound(w, "environment", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createCountdown(w http.ResponseWriter, r *http.Request) {
	var c entity.Countdown
	if !decode(w, r, &c) {
		return
	}
	if err := entity.ValidateCountdown(c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.dash.CreateCountdown(r.Context(), c))
}

func (s *Server) updateCountdown(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fn, ok := readPatch[entity.Countdown](w, r)
	if !ok {
		return
	}
	c, ok := s.dash.UpdateCountdown(r.Context(), id, fn)
	if !ok {
		notFound(w, "countdown", id)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCountdown(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.dash.DeleteCountdown(r.Context(), id) {
		notFound(w, "countdown", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) advanceCountdown(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req deltaRequest
	if !decode(w, r, &req) {
		return
	}
	c, ok := s.dash.AdvanceCountdown(r.Context(), id, req.Delta)
	if !ok {
		notFound(w, "countdown", id)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// fearRequest sets the value, adjusts it by delta, or toggles visibility.
// Any combination may be sent; value is applied before delta.
type fearRequest struct {
	Value   *int  `json:"value"`
	Delta   *int  `json:"delta"`
	Visible *bool `json:"visible"`
}

func (s *Server) putFear(w http.ResponseWriter, r *http.Request) {
	var req fearRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	if req.Value != nil {
		s.dash.SetFear(ctx, *req.Value)
	}
	if req.Delta != nil {
		s.dash.AdjustFear(ctx, *req.Delta)
	}
	if req.Visible != nil {
		s.dash.SetFearVisible(ctx, *req.Visible)
	}
	writeJSON(w, http.StatusOK, s.dash.Settings().Fear)
}

type partySizeRequest struct {
	PartySize *int `json:"partySize"`
}

// putPartySize rejects a missing or non-positive size before it reaches the
// scaler, which would otherwise clamp it to 1 and remove minions.
func (s *Server) putPartySize(w http.ResponseWriter, r *http.Request) {
	var req partySizeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PartySize == nil || *req.PartySize < 1 {
		writeError(w, http.StatusBadRequest, "partySize must be a number of at least 1")
		return
	}
	s.dash.SetPartySize(r.Context(), *req.PartySize)
	writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

// ─────────────────────────────────────────────────────────────────────────────
// Encounters
// ─────────────────────────────────────────────────────────────────────────────

type encounterRequest struct {
	Name                    string         `json:"name"`
	BattlePointsAdjustments map[string]any `json:"battlePointsAdjustments"`
}

func (s *Server) saveEncounter(w http.ResponseWriter, r *http.Request) {
	var req encounterRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.dash.SaveEncounter(r.Context(), req.Name, req.BattlePointsAdjustments))
}

func (s *Server) renameEncounter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req encounterRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	enc, ok := s.dash.RenameEncounter(r.Context(), id, req.Name)
	if !ok {
		notFound(w, "encounter", id)
		return
	}
	writeJSON(w, http.StatusOK, enc)
}

func (s *Server) loadEncounter(w http.ResponseWriter, r *http.Request) {
	if _, err := s.dash.LoadEncounter(r.Context(), r.PathValue("id")); err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

func (s *Server) deleteEncounter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.dash.DeleteEncounter(r.Context(), id) {
		notFound(w, "encounter", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────────────────────────────────────
// Custom content
// ─────────────────────────────────────────────────────────────────────────────

const (
	customAdversaries  = "adversaries"
	customEnvironments = "environments"
)

func (s *Server) createCustom(w http.ResponseWriter, r *http.Request) {
	switch kind := r.PathValue("kind"); kind {
	case customAdversaries:
		var a entity.Adversary
		if !decode(w, r, &a) {
			return
		}
		if err := entity.ValidateAdversary(a); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, s.dash.CreateCustomAdversary(r.Context(), a))
	case customEnvironments:
		var e entity.Environment
		if !decode(w, r, &e) {
			return
		}
		if err := entity.ValidateEnvironment(e); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, s.dash.CreateCustomEnvironment(r.Context(), e))
	default:
		notFound(w, "custom content kind", kind)
	}
}

func (s *Server) updateCustom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch kind := r.PathValue("kind"); kind {
	case customAdversaries:
		fn, ok := readPatch[entity.Adversary](w, r)
		if !ok {
			return
		}
		a, ok := s.dash.UpdateCustomAdversary(r.Context(), id, fn)
		if !ok {
			notFound(w, "custom adversary", id)
			return
		}
		writeJSON(w, http.StatusOK, a)
	case customEnvironments:
		fn, ok := readPatch[entity.Environment](w, r)
		if !ok {
			return
		}
		e, ok := s.dash.UpdateCustomEnvironment(r.Context(), id, fn)
		if !ok {
			notFound(w, "custom environment", id)
			return
		}
		writeJSON(w, http.StatusOK, e)
	default:
		notFound(w, "custom content kind", kind)
	}
}

func (s *Server) deleteCustom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var ok bool
	switch kind := r.PathValue("kind"); kind {
	case customAdversaries:
		ok = s.dash.DeleteCustomAdversary(r.Context(), id)
	case customEnvironments:
		ok = s.dash.DeleteCustomEnvironment(r.Context(), id)
	default:
		notFound(w, "custom content kind", kind)
		return
	}
	if !ok {
		notFound(w, "custom entry", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) searchCustom(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.dash.SearchCustom(q.Get("q"), limit))
}

type importResponse struct {
	Adversaries  int `json:"adversaries"`
	Environments int `json:"environments"`
}

// importCustom reads a YAML content library, or a Foundry VTT JSON export
// when the request says it is JSON.
func (s *Server) importCustom(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var (
		lib *entity.Library
		err error
	)
	if isJSON(r) {
		lib, err = entity.ImportFoundryVTT(body, r.URL.Query().Get("source"))
	} else {
		lib, err = entity.LoadLibraryFromReader(body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	advs, envs := s.dash.ImportLibrary(r.Context(), lib)
	writeJSON(w, http.StatusOK, importResponse{Adversaries: advs, Environments: envs})
}

// isJSON reports whether the request body is declared as JSON. Parameters
// such as charset are ignored.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// ─────────────────────────────────────────────────────────────────────────────
// Focus
// ─────────────────────────────────────────────────────────────────────────────

type focusRequest struct {
	Kind focus.Kind `json:"kind"`
	ID   string     `json:"id"`
}

func (s *Server) putFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if !decode(w, r, &req) {
		return
	}
	sel, err := s.dash.Select(req.Kind, req.ID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) deleteFocus(w http.ResponseWriter, _ *http.Request) {
	s.dash.ClearFocus()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) focusFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.metrics.FocusSubscribers.Add(ctx, 1)
	defer s.metrics.FocusSubscribers.Add(ctx, -1)
	s.feed.ServeHTTP(w, r)
}
