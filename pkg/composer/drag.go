package composer

import (
	"errors"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// ErrNoDrag is returned by EndDrag when no drag is in progress.
var ErrNoDrag = errors.New("no drag in progress")

// BeginDrag starts dragging charm id, limiting its top-left to the legal
// range. A drag already in progress is cancelled.
func (s *Session) BeginDrag(id string) error {
	bounds, err := s.store.DragBounds(id)
	if err != nil {
		return err
	}
	s.drag.SetBounds(bounds)
	s.dragging = id
	return nil
}

// Dragging returns the id of the charm being dragged.
func (s *Session) Dragging() (string, bool) {
	return s.dragging, s.dragging != ""
}

// DragTo clamps a pointer position into the drag bounds. Nothing is
// committed; the returned position is what a renderer should draw.
func (s *Session) DragTo(p types.Point) (types.Point, bool) {
	if s.dragging == "" {
		return p, false
	}
	return s.drag.Clamp(p), true
}

// EndDrag commits the drag at p through Move, which runs collision
// resolution and records the result.
func (s *Session) EndDrag(p types.Point) (types.Charm, error) {
	if s.dragging == "" {
		return types.Charm{}, ErrNoDrag
	}
	id := s.dragging
	p = s.drag.Clamp(p)
	s.CancelDrag()
	return s.Move(id, p)
}

// CancelDrag abandons the drag without committing.
func (s *Session) CancelDrag() {
	s.drag.ClearBounds()
	s.dragging = ""
}
