package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/robotlan-core/internal/audit"
	"github.com/nerrad567/robotlan-core/internal/discovery"
	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/session"
)

// disabledByAPI is the disable source recorded for API requests.
const disabledByAPI = "api"

// ConnectionView is the JSON form of a connection state.
type ConnectionView struct {
	RobotID   string         `json:"robot_id,omitempty"`
	Phase     session.Phase  `json:"phase"`
	Reason    session.Reason `json:"reason"`
	Message   string         `json:"message,omitempty"`
	Address   string         `json:"address,omitempty"`
	Disabled  bool           `json:"disabled"`
	ErrorCode *int           `json:"error_code,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitzero"`
}

func connectionView(st session.ConnectionState, address string, at time.Time, robotID string) ConnectionView {
	v := ConnectionView{
		RobotID:   robotID,
		Phase:     st.Phase,
		Reason:    st.Reason,
		Message:   st.Message,
		Address:   address,
		Disabled:  st.Disabled(),
		Timestamp: at,
	}
	if code, ok := st.InternalError(); ok {
		v.ErrorCode = &code
	}
	return v
}

// RobotView is the JSON form of a registered robot.
type RobotView struct {
	ID         string          `json:"id"`
	Family     robot.Family    `json:"family"`
	Connection ConnectionView  `json:"connection"`
	Status     *robot.Status   `json:"status,omitempty"`
	Derived    *robot.Derived  `json:"derived,omitempty"`
	StatusTime time.Time       `json:"status_time,omitzero"`
	Stale      bool            `json:"stale"`
	Commands   []robot.Command `json:"commands"`
	Options    []robot.Option  `json:"options"`
}

// robotView builds the view for one session. A robot that has not
// reported since start shows its last stored status, marked stale.
func (s *Server) robotView(r *http.Request, sess *session.Session) RobotView {
	v := RobotView{
		ID:         sess.ID(),
		Family:     sess.Family(),
		Connection: connectionView(sess.State(), sess.Address(), time.Time{}, ""),
		Commands:   supportedCommands(sess.Family()),
		Options:    sess.SupportedOptions(),
	}
	if v.Options == nil {
		v.Options = []robot.Option{}
	}

	if st, ok := sess.Status(); ok {
		d := robot.Derive(st)
		v.Status, v.Derived, v.StatusTime = &st, &d, time.Now().UTC()
		return v
	}

	snap, ok, err := s.coord.Store().LoadStatus(r.Context(), sess.ID())
	if err != nil {
		s.logger.Warn("loading stored status failed", "robot_id", sess.ID(), "error", err)
		return v
	}
	if ok {
		v.Status, v.Derived, v.StatusTime = &snap.Status, &snap.Derived, snap.Time
		v.Stale = true
	}
	return v
}

func supportedCommands(f robot.Family) []robot.Command {
	m, err := robot.ModelFor(f)
	if err != nil {
		return []robot.Command{}
	}
	cmds := make([]robot.Command, 0, len(robot.AllCommands))
	for _, c := range robot.AllCommands {
		if m.SupportsCommand(c) {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// handleListRobots returns every registered robot, sorted by id.
func (s *Server) handleListRobots(w http.ResponseWriter, r *http.Request) {
	sessions := s.coord.Sessions()
	robots := make([]RobotView, 0, len(sessions))
	for _, sess := range sessions {
		robots = append(robots, s.robotView(r, sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"robots": robots,
		"count":  len(robots),
	})
}

// handleGetRobot returns a single robot.
func (s *Server) handleGetRobot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coord.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.robotView(r, sess))
}

// handleGetShadow returns the robot's merged state document.
func (s *Server) handleGetShadow(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coord.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleCommand sends a mission command. The optional JSON body is merged
// into the command payload.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coord.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var params map[string]any
	if err := decodeOptionalBody(r, &params); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	cmd := robot.Command(chi.URLParam(r, "command"))
	err = sess.SendCommand(cmd, params)
	s.record(r, audit.ActionCommand, sess.ID(), map[string]any{"command": string(cmd)}, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"robot_id": sess.ID(),
		"command":  cmd,
		"status":   "sent",
	})
}

// handleControl sends whichever command moves the robot towards the
// requested status, such as dockManually or clean.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coord.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	name := chi.URLParam(r, "target")
	target, ok := robot.ParseRobotStatus(name)
	if !ok {
		writeBadRequest(w, "unknown target status: "+name)
		return
	}

	err = sess.Control(target)
	s.record(r, audit.ActionCommand, sess.ID(), map[string]any{"target": target.String()}, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"robot_id": sess.ID(),
		"target":   target,
		"status":   "sent",
	})
}

// handleListOptions returns the supported options and their current values.
func (s *Server) handleListOptions(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coord.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	values := make(map[string]any)
	for opt, v := range sess.Options() {
		values[string(opt)] = v
	}
	supported := sess.SupportedOptions()
	if supported == nil {
		supported = []robot.Option{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"supported": supported,
		"values":    values,
	})
}

// setOptionRequest is the body of PUT /options/{option}.
type setOptionRequest struct {
	Value any `json:"value"`
}

// handleSetOption changes one option. The robot confirms the change with
// a later state report.
func (s *Server) handleSetOption(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coord.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	opt, err := robot.ParseOption(chi.URLParam(r, "option"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req setOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	err = sess.SetOption(opt, req.Value)
	s.record(r, audit.ActionSetOption, sess.ID(), map[string]any{"option": string(opt), "value": req.Value}, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"robot_id": sess.ID(),
		"option":   opt,
		"value":    req.Value,
		"status":   "sent",
	})
}

// handleDisable pins the robot offline until enabled.
func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coord.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	changed := sess.Disable(disabledByAPI)
	if changed {
		s.record(r, audit.ActionDisable, sess.ID(), nil, nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed":    changed,
		"connection": connectionView(sess.State(), sess.Address(), time.Time{}, sess.ID()),
	})
}

// handleEnable clears a disable and reconnects.
func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	sess, err := s.coord.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	changed := sess.Enable()
	if changed {
		s.record(r, audit.ActionEnable, sess.ID(), nil, nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed":    changed,
		"connection": connectionView(sess.State(), sess.Address(), time.Time{}, sess.ID()),
	})
}

// handleDiscover runs one discovery sweep and returns every robot that
// answered, registered or not.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	found, err := s.coord.Discover(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveSweep(time.Since(start), len(found))
	}

	type discovered struct {
		discovery.Robot
		Registered bool `json:"registered"`
	}
	robots := make([]discovered, 0, len(found))
	for _, d := range found {
		_, err := s.coord.Session(d.ID)
		robots = append(robots, discovered{Robot: d, Registered: err == nil})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"robots": robots,
		"count":  len(robots),
	})
}

// decodeOptionalBody decodes a JSON body into v. An empty body is not an error.
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
