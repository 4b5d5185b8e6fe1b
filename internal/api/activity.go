package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/robotlan-core/internal/audit"
)

// activitySource is the source recorded for API actions.
const activitySource = "api"

// record logs an action to the activity log. A failed write is logged
// and never fails the request.
func (s *Server) record(r *http.Request, action, robotID string, details map[string]any, actionErr error) {
	if s.activity == nil {
		return
	}
	e := &audit.Entry{
		Action:  action,
		RobotID: robotID,
		Source:  activitySource,
		Details: details,
	}
	if actionErr != nil {
		e.Outcome = audit.OutcomeRejected
		if e.Details == nil {
			e.Details = map[string]any{}
		}
		e.Details["error"] = actionErr.Error()
	}
	if err := s.activity.Create(r.Context(), e); err != nil {
		s.logger.Warn("recording activity failed", "action", action, "robot", robotID, "error", err)
	}
}

// handleListActivity returns the activity log, optionally filtered by
// action and robot_id query parameters.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	s.listActivity(w, r, r.URL.Query().Get("robot_id"))
}

// handleRobotActivity returns one robot's activity.
func (s *Server) handleRobotActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.coord.Session(id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.listActivity(w, r, id)
}

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request, robotID string) {
	if s.activity == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "activity log not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{Action: q.Get("action"), RobotID: robotID}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "invalid offset")
		return
	}

	res, err := s.activity.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing activity failed", "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// intParam parses an optional integer query parameter.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
