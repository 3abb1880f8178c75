package types

// AttachmentZone is an anchor point on the base design that can capture a
// nearby charm. Occupied holds the id of the capturing charm, or "" when free.
type AttachmentZone struct {
	ID       string  `json:"id"`
	Position Point   `json:"position"`
	Radius   float64 `json:"radius"`
	Occupied string  `json:"occupied,omitempty"`
}

// Free reports whether no charm occupies the zone.
func (z AttachmentZone) Free() bool { return z.Occupied == "" }

// ZoneSpec defines a zone in design-local units, before the base design is
// positioned and scaled on the stage.
type ZoneSpec struct {
	ID      string  `json:"id" yaml:"id"`
	OffsetX float64 `json:"offsetX" yaml:"offset_x"`
	OffsetY float64 `json:"offsetY" yaml:"offset_y"`
	Radius  float64 `json:"radius" yaml:"radius"`
}

// BaseDesign is the piece of jewelry charms are attached to. Bounds locates
// the design on the stage; Scale maps design-local zone units to stage units.
type BaseDesign struct {
	ID     string     `json:"id" yaml:"id"`
	Bounds Rect       `json:"bounds" yaml:"bounds"`
	Scale  float64    `json:"scale" yaml:"scale"`
	Zones  []ZoneSpec `json:"zones" yaml:"zones"`
}

// ZoneAt returns the stage-space zone for spec under the design's placement.
// A zero scale is treated as 1.
func (d BaseDesign) ZoneAt(spec ZoneSpec) AttachmentZone {
	scale := defaultScale(d.Scale)
	return AttachmentZone{
		ID: spec.ID,
		Position: Point{
			X: d.Bounds.X + spec.OffsetX*scale,
			Y: d.Bounds.Y + spec.OffsetY*scale,
		},
		Radius: spec.Radius * scale,
	}
}
