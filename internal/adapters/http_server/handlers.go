package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"goplanit/internal/app"
	"goplanit/internal/domain"
)

type Handlers struct {
	Intake *app.IntakeService
	Q      *app.QueryService
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/health", h.health)
	s.mux.Route("/preferences", func(r chi.Router) {
		r.Post("/", h.createPreference)
		r.Get("/user/{userId}", h.listUserPreferences)
		r.Get("/{id}", h.getPreference)
		r.Get("/{id}/status", h.getStatus)
		r.Put("/{id}", h.updatePreference)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

type message struct {
	Message string `json:"message"`
}

// writeError maps domain and validation errors onto the HTTP taxonomy:
// malformed ids and bad input are 400, unknown ids 404, the rest 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, message{Message: "Invalid preference ID format"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, message{Message: "Preference not found"})
	case app.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, message{Message: err.Error()})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, message{Message: "Internal server error"})
	}
}

func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Server is running successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) createPreference(w http.ResponseWriter, r *http.Request) {
	var in app.CreatePreferenceInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Invalid request body: " + err.Error()})
		return
	}
	res, err := h.Intake.CreatePreference(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *Handlers) getPreference(w http.ResponseWriter, r *http.Request) {
	view, err := h.Q.GetPreference(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Q.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handlers) listUserPreferences(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	view, err := h.Q.ListByUser(r.Context(), chi.URLParam(r, "userId"), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) updatePreference(w http.ResponseWriter, r *http.Request) {
	// Only the restricted subset is decoded; anything else in the body
	// (dates, location codes, itinerary) is dropped on the floor.
	var body struct {
		Interests                []string `json:"interests"`
		Budget                   *float64 `json:"budget"`
		TransportPreferences     []string `json:"transportPreferences"`
		AccommodationPreferences []string `json:"accommodationPreferences"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: "Invalid request body: " + err.Error()})
		return
	}
	pref, err := h.Intake.UpdatePreference(r.Context(), chi.URLParam(r, "id"), domain.PreferenceUpdate{
		Interests:                body.Interests,
		Budget:                   body.Budget,
		TransportPreferences:     body.TransportPreferences,
		AccommodationPreferences: body.AccommodationPreferences,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}
