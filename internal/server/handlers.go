package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// errSoft marks operations that could not apply to the current state.
var errSoft = errors.New("not applicable")

// placeRequest is the body of POST /api/charms.
type placeRequest struct {
	types.CharmSpec
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// positionRequest is the body of PUT /api/charms/{id}/position.
type positionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// labelRequest is the body of the milestone and branch endpoints.
type labelRequest struct {
	Label string `json:"label"`
	Name  string `json:"name"`
}

// charmResponse adds the charms a placement still overlaps after a
// free-space fallback.
type charmResponse struct {
	types.Charm
	Conflicts []string `json:"conflicts,omitempty"`
}

// GET /api/charms
func (s *Server) handleListCharms(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.session.CharmData())
}

// POST /api/charms
func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.session.Place(req.CharmSpec, types.Point{X: req.X, Y: req.Y})
	if err != nil && c.ID == "" {
		s.writeError(w, err)
		return
	}
	if err != nil {
		s.logger.Error("persisting after place", "charm_id", c.ID, "error", err)
	}
	conflicts, _ := s.session.Conflicts(c.ID)
	writeJSON(w, http.StatusCreated, charmResponse{Charm: c, Conflicts: conflicts})
}

// DELETE /api/charms
func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.ClearAll(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/charms/{id}/position
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.session.Move(id, types.Point{X: req.X, Y: req.Y})
	if err != nil && c.ID == "" {
		s.writeError(w, err)
		return
	}
	if err != nil {
		s.logger.Error("persisting after move", "charm_id", c.ID, "error", err)
	}
	conflicts, _ := s.session.Conflicts(id)
	writeJSON(w, http.StatusOK, charmResponse{Charm: c, Conflicts: conflicts})
}

// DELETE /api/charms/{id}
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.session.Remove(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !removed {
		s.writeError(w, fmt.Errorf("remove charm %s: %w", id, types.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/charms/{id}/snap
func (s *Server) handleSnap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()

	c, snapped, err := s.session.SnapToAttachmentZone(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !snapped {
		s.writeError(w, fmt.Errorf("no free zone within reach of %s: %w", id, errSoft))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GET /api/zones
func (s *Server) handleZones(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	zones := s.session.Zones()
	if zones == nil {
		zones = []types.AttachmentZone{}
	}
	writeJSON(w, http.StatusOK, zones)
}

// GET /api/zones/nearest?x=&y=
func (s *Server) handleNearestZone(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "x and y query parameters must be numbers"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	z, ok := s.session.FindNearestAttachmentZone(types.Point{X: x, Y: y})
	if !ok {
		s.writeError(w, fmt.Errorf("no free attachment zone: %w", errSoft))
		return
	}
	writeJSON(w, http.StatusOK, z)
}

// GET /api/history
func (s *Server) handleHistoryInfo(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.session.HistoryInfo())
}

// POST /api/history/undo
func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step(w, s.session.Undo, "nothing to undo")
}

// POST /api/history/redo
func (s *Server) handleRedo(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step(w, s.session.Redo, "nothing to redo")
}

// step runs an undo or redo and replies with the restored charms.
func (s *Server) step(w http.ResponseWriter, fn func() (bool, error), soft string) {
	ok, err := fn()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, fmt.Errorf("%s: %w", soft, errSoft))
		return
	}
	writeJSON(w, http.StatusOK, s.session.CharmData())
}

// POST /api/history/jump/{index}
func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be an integer"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.JumpToState(index); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.CharmData())
}

// GET /api/history/export
func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.session.ExportHistory())
}

// POST /api/history/import
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var data types.HistoryExport
	if !decode(w, r, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.ImportHistory(data); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.HistoryInfo())
}

// POST /api/history/milestones
func (s *Server) handleMilestone(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "label is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.session.MarkMilestone(req.Label)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, fmt.Errorf("history is empty: %w", errSoft))
		return
	}
	writeJSON(w, http.StatusOK, s.session.HistoryInfo())
}

// POST /api/history/branches
func (s *Server) handleBranch(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	branch, ok, err := s.session.CreateBranch(req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, fmt.Errorf("cannot branch: %w", errSoft))
		return
	}
	writeJSON(w, http.StatusCreated, branch)
}

// decode reads a JSON body into v, replying 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps err to a status code and replies with {"error": ...}.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidCharmSpec),
		errors.Is(err, types.ErrIndexOutOfRange),
		errors.Is(err, types.ErrInvalidID):
		code = http.StatusBadRequest
	case errors.Is(err, types.ErrDuplicateID), errors.Is(err, errSoft):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
