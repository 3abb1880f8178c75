package placement

import (
	"math"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// searchAngles is the number of probe angles per ring (a step of π/8).
const searchAngles = 16

// FreeSpace is a bounded radial scan around a blocked position.
type FreeSpace struct {
	Radius float64 // Largest ring radius probed.
	Step   float64 // Distance between rings.
}

// DefaultFreeSpace returns a scan of rings every 10 units out to 100.
func DefaultFreeSpace() FreeSpace {
	return FreeSpace{Radius: types.DefaultSearchRadius, Step: types.DefaultSearchStep}
}

// Find probes rings of radius Step, 2*Step, ... up to Radius, and on each
// ring the angles 0, π/8, ... 15π/8, returning the first position for which
// isBlocked is false. The order is fixed, so identical inputs give identical
// output. When every probe is blocked Find returns preferred unchanged and
// false; the caller must tolerate a position that may still collide.
func (f FreeSpace) Find(preferred types.Point, isBlocked func(types.Point) bool) (types.Point, bool) {
	if f.Step <= 0 {
		return preferred, false
	}
	rings := int(math.Floor(f.Radius/f.Step + 1e-9))
	for k := 1; k <= rings; k++ {
		r := float64(k) * f.Step
		for i := 0; i < searchAngles; i++ {
			theta := float64(i) * math.Pi / 8
			p := types.Point{
				X: preferred.X + r*math.Cos(theta),
				Y: preferred.Y + r*math.Sin(theta),
			}
			if !isBlocked(p) {
				return p, true
			}
		}
	}
	return preferred, false
}
