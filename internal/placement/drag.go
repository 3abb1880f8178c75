package placement

import "github.com/mesh-intelligence/charmsmith/pkg/types"

// DragConstraint clamps in-progress drag positions to a rectangle of legal
// top-left coordinates. It knows nothing about collisions; Clamp is O(1) and
// meant to run on every pointer move.
type DragConstraint struct {
	bounds types.Rect
	active bool
}

// SetBounds activates the constraint with the given bounds.
func (d *DragConstraint) SetBounds(r types.Rect) {
	d.bounds = r
	d.active = true
}

// ClearBounds deactivates the constraint.
func (d *DragConstraint) ClearBounds() {
	d.bounds = types.Rect{}
	d.active = false
}

// Active reports whether bounds are set.
func (d *DragConstraint) Active() bool { return d.active }

// Bounds returns the active bounds.
func (d *DragConstraint) Bounds() types.Rect { return d.bounds }

// Clamp restricts p to the active bounds per axis. Without bounds p is
// returned unchanged.
func (d *DragConstraint) Clamp(p types.Point) types.Point {
	if !d.active {
		return p
	}
	return d.bounds.Clamp(p)
}
