package placement

import "github.com/mesh-intelligence/charmsmith/pkg/types"

// HasCollision reports whether candidate comes closer than minSpacing to any
// occupant. Each rectangle is inflated by minSpacing/2 per side, so two
// charms collide unless their edges are at least minSpacing apart. Callers
// must leave the charm being moved out of occupants.
func HasCollision(candidate types.Rect, occupants []types.Rect, minSpacing float64) bool {
	half := minSpacing / 2
	c := candidate.Inflate(half)
	for _, o := range occupants {
		if c.Intersects(o.Inflate(half)) {
			return true
		}
	}
	return false
}

// Collisions returns the indices of the occupants that candidate collides
// with, in occupant order. Used to render conflict indicators after the
// free-space search has fallen back.
func Collisions(candidate types.Rect, occupants []types.Rect, minSpacing float64) []int {
	half := minSpacing / 2
	c := candidate.Inflate(half)
	var hits []int
	for i, o := range occupants {
		if c.Intersects(o.Inflate(half)) {
			hits = append(hits, i)
		}
	}
	return hits
}
