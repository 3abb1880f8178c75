// Package placement implements the spatial placement engine: collision
// checks between charm rectangles, the radial free-space search, attachment
// zone snapping and occupancy, the placement validator that turns a requested
// position into a legal one, and the drag constraint used for live feedback.
//
// Nothing in this package blocks or allocates per pointer-move; everything
// runs to completion on the caller's goroutine. None of the types are safe
// for concurrent use.
package placement
