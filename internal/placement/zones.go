package placement

import (
	"math"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// reclaimTolerance is how far a restored charm centre may sit from a zone
// centre and still be treated as snapped to it.
const reclaimTolerance = 0.5

// ZoneManager owns the attachment zones of the loaded base design and their
// occupancy. A zone holds at most one charm; callers release a charm before
// snapping it again so a charm holds at most one zone.
type ZoneManager struct {
	design types.BaseDesign
	loaded bool
	zones  []types.AttachmentZone
}

// NewZoneManager returns a manager with no base design loaded.
func NewZoneManager() *ZoneManager {
	return &ZoneManager{}
}

// Load replaces the zone set wholesale with the zones of design. All
// occupancy is cleared.
func (m *ZoneManager) Load(design types.BaseDesign) {
	if design.Scale == 0 {
		design.Scale = 1
	}
	design.Zones = append([]types.ZoneSpec(nil), design.Zones...)
	m.design = design
	m.loaded = true
	m.zones = make([]types.AttachmentZone, len(design.Zones))
	for i, spec := range design.Zones {
		m.zones[i] = design.ZoneAt(spec)
	}
}

// Design returns the loaded base design.
func (m *ZoneManager) Design() (types.BaseDesign, bool) {
	if !m.loaded {
		return types.BaseDesign{}, false
	}
	d := m.design
	d.Zones = append([]types.ZoneSpec(nil), d.Zones...)
	return d, true
}

// Rescale changes the base design scale, keeping its top-left corner fixed.
// Zone positions and radii are re-derived so radius/scale stays constant;
// occupancy is kept. Non-positive scales are ignored.
func (m *ZoneManager) Rescale(scale float64) bool {
	if !m.loaded || scale <= 0 {
		return false
	}
	ratio := scale / m.design.Scale
	m.design.Bounds.Width *= ratio
	m.design.Bounds.Height *= ratio
	m.design.Scale = scale
	for i, spec := range m.design.Zones {
		occupied := m.zones[i].Occupied
		m.zones[i] = m.design.ZoneAt(spec)
		m.zones[i].Occupied = occupied
	}
	return true
}

// Zones returns a copy of the current zones in design order.
func (m *ZoneManager) Zones() []types.AttachmentZone {
	return append([]types.AttachmentZone(nil), m.zones...)
}

// FindNearest returns the free zone closest to p. Ties go to the zone that
// comes first in design order. Returns false when no zone is free.
func (m *ZoneManager) FindNearest(p types.Point) (types.AttachmentZone, bool) {
	i := m.nearestFree(p)
	if i < 0 {
		return types.AttachmentZone{}, false
	}
	return m.zones[i], true
}

func (m *ZoneManager) nearestFree(p types.Point) int {
	best := -1
	bestDist := math.Inf(1)
	for i, z := range m.zones {
		if !z.Free() {
			continue
		}
		if d := types.Distance(p, z.Position); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// TrySnap marks the nearest free zone as occupied by charmID and returns its
// centre when that zone is within threshold of p. Otherwise p is returned
// unchanged with false.
func (m *ZoneManager) TrySnap(p types.Point, threshold float64, charmID string) (types.Point, bool) {
	i := m.nearestFree(p)
	if i < 0 || types.Distance(p, m.zones[i].Position) > threshold {
		return p, false
	}
	m.zones[i].Occupied = charmID
	return m.zones[i].Position, true
}

// Release frees every zone held by charmID and reports whether any was.
func (m *ZoneManager) Release(charmID string) bool {
	released := false
	for i := range m.zones {
		if m.zones[i].Occupied == charmID {
			m.zones[i].Occupied = ""
			released = true
		}
	}
	return released
}

// ReleaseAll frees every zone.
func (m *ZoneManager) ReleaseAll() {
	for i := range m.zones {
		m.zones[i].Occupied = ""
	}
}

// ZoneOf returns the zone occupied by charmID.
func (m *ZoneManager) ZoneOf(charmID string) (types.AttachmentZone, bool) {
	for _, z := range m.zones {
		if z.Occupied == charmID {
			return z, true
		}
	}
	return types.AttachmentZone{}, false
}

// Reclaim marks the free zone centred on center as occupied by charmID. It is
// used after a restore, where snapshots carry positions but not occupancy.
func (m *ZoneManager) Reclaim(charmID string, center types.Point) bool {
	for i, z := range m.zones {
		if z.Free() && types.Distance(center, z.Position) <= reclaimTolerance {
			m.zones[i].Occupied = charmID
			return true
		}
	}
	return false
}
