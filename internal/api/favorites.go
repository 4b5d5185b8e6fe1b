package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/robotlan-core/internal/audit"
	"github.com/nerrad567/robotlan-core/internal/registry"
	"github.com/nerrad567/robotlan-core/internal/robot"
)

// saveFavoriteRequest is the body of PUT /favorites.
type saveFavoriteRequest struct {
	Name string `json:"name"`
}

// handleListFavorites returns a robot's saved jobs.
func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.coord.Favorites(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if favorites == nil {
		favorites = []robot.Favorite{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"favorites": favorites,
		"count":     len(favorites),
	})
}

// handleSaveFavorite saves the robot's last started job under a name.
func (s *Server) handleSaveFavorite(w http.ResponseWriter, r *http.Request) {
	var req saveFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	id := chi.URLParam(r, "id")
	f, err := s.coord.SaveFavorite(r.Context(), id, req.Name)
	if !errors.Is(err, registry.ErrRobotNotFound) {
		s.record(r, audit.ActionSaveFavorite, id, map[string]any{"favorite": req.Name}, err)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// handleDeleteFavorite removes a saved job.
func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "name")
	err := s.coord.DeleteFavorite(r.Context(), id, name)
	if !errors.Is(err, registry.ErrRobotNotFound) {
		s.record(r, audit.ActionDeleteFavorite, id, map[string]any{"favorite": name}, err)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStartFavorite starts a saved job.
func (s *Server) handleStartFavorite(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "name")
	err := s.coord.StartFavorite(r.Context(), id, name)
	if !errors.Is(err, registry.ErrRobotNotFound) {
		s.record(r, audit.ActionStartFavorite, id, map[string]any{"favorite": name}, err)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"robot_id": id,
		"favorite": name,
		"status":   "sent",
	})
}
