package charmstore

import (
	"fmt"

	"github.com/mesh-intelligence/charmsmith/internal/placement"
	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// LoadBaseDesign replaces the attachment zones with those of design. Charms
// stay where they are; zone occupancy is re-derived from their positions.
func (s *Store) LoadBaseDesign(design types.BaseDesign) {
	s.zones.Load(design)
	for _, id := range s.order {
		s.zones.Reclaim(id, s.charms[id].Rect().Center())
	}
	s.logger.Info("base design loaded", "design_id", design.ID, "zones", len(design.Zones))
}

// BaseDesign returns the loaded base design.
func (s *Store) BaseDesign() (types.BaseDesign, bool) {
	return s.zones.Design()
}

// ScaleBaseDesign rescales the base design. Charms snapped to a zone follow
// it so their centres stay on the zone centre.
func (s *Store) ScaleBaseDesign(scale float64) bool {
	if !s.zones.Rescale(scale) {
		return false
	}
	for _, z := range s.zones.Zones() {
		if z.Free() {
			continue
		}
		if c, ok := s.charms[z.Occupied]; ok {
			c.Position = centredAt(z.Position, c.Size)
		}
	}
	return true
}

// Zones returns a copy of the attachment zones.
func (s *Store) Zones() []types.AttachmentZone {
	return s.zones.Zones()
}

// FindNearestZone returns the free zone nearest to p.
func (s *Store) FindNearestZone(p types.Point) (types.AttachmentZone, bool) {
	return s.zones.FindNearest(p)
}

// NearestZone returns the free zone nearest to the centre of charm id.
func (s *Store) NearestZone(id string) (types.AttachmentZone, bool, error) {
	c, ok := s.charms[id]
	if !ok {
		return types.AttachmentZone{}, false, fmt.Errorf("nearest zone for charm %s: %w", id, types.ErrNotFound)
	}
	z, found := s.zones.FindNearest(c.Rect().Center())
	return z, found, nil
}

// ZoneOf returns the zone held by charm id.
func (s *Store) ZoneOf(id string) (types.AttachmentZone, bool) {
	return s.zones.ZoneOf(id)
}

// SnapToZone pulls charm id onto the nearest free zone when that zone is
// within threshold of the charm centre. The charm is centred on the zone and
// kept on the stage; collision resolution is skipped because zones are
// deliberate anchors. Any zone the charm held before is released first.
// Reports whether the charm snapped.
func (s *Store) SnapToZone(id string, threshold float64) (types.Charm, bool, error) {
	c, ok := s.charms[id]
	if !ok {
		return types.Charm{}, false, fmt.Errorf("snap charm %s: %w", id, types.ErrNotFound)
	}
	s.zones.Release(id)

	center, snapped := s.zones.TrySnap(c.Rect().Center(), threshold, id)
	if !snapped {
		return c.Clone(), false, nil
	}
	c.Position = placement.StageBounds(c.Size, s.cfg.Stage).Clamp(centredAt(center, c.Size))
	s.logger.Debug("charm snapped", "charm_id", id, "x", center.X, "y", center.Y)
	return c.Clone(), true, nil
}

// DragBounds returns the range of legal top-left positions for charm id: the
// stage bounds narrowed to the base design margin when one is loaded.
func (s *Store) DragBounds(id string) (types.Rect, error) {
	c, ok := s.charms[id]
	if !ok {
		return types.Rect{}, fmt.Errorf("drag bounds for charm %s: %w", id, types.ErrNotFound)
	}
	bounds := placement.StageBounds(c.Size, s.cfg.Stage)
	if d, ok := s.zones.Design(); ok {
		base := placement.BaseBounds(c.Size, d.Bounds, s.cfg.Margin)
		if r, overlap := bounds.Intersection(base); overlap {
			bounds = r
		} else {
			bounds = base
		}
	}
	return bounds, nil
}

// centredAt returns the top-left position that centres size on p.
func centredAt(p types.Point, size types.Size) types.Point {
	return types.Point{X: p.X - size.Width/2, Y: p.Y - size.Height/2}
}
