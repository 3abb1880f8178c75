package types

import "math"

// Metadata is the caller-supplied payload carried by a charm (title,
// material, image reference). The core never interprets it.
type Metadata map[string]string

// Well-known metadata keys.
const (
	MetaTitle    = "title"
	MetaMaterial = "material"
	MetaImage    = "image"
)

// Clone returns an independent copy. A nil map clones to nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Charm is a placed decorative element. Position is the top-left corner in
// design-space units. Size is fixed at creation.
type Charm struct {
	ID       string   `json:"id"`
	Position Point    `json:"position"`
	Size     Size     `json:"size"`
	Rotation float64  `json:"rotation"`
	ScaleX   float64  `json:"scaleX"`
	ScaleY   float64  `json:"scaleY"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Rect returns the charm's axis-aligned bounds at its current position.
func (c Charm) Rect() Rect {
	return RectAt(c.Position, c.Size)
}

// Clone returns a copy of c that shares no memory with it.
func (c Charm) Clone() Charm {
	c.Metadata = c.Metadata.Clone()
	return c
}

// State returns the history value copy of the charm.
func (c Charm) State() CharmState {
	return CharmState{
		ID:       c.ID,
		X:        c.Position.X,
		Y:        c.Position.Y,
		Width:    c.Size.Width,
		Height:   c.Size.Height,
		Rotation: c.Rotation,
		ScaleX:   c.ScaleX,
		ScaleY:   c.ScaleY,
		Metadata: c.Metadata.Clone(),
	}
}

// CharmState is the value copy of a charm stored in a history snapshot.
// It never aliases a live Charm.
type CharmState struct {
	ID       string   `json:"id"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width,omitempty"`
	Height   float64  `json:"height,omitempty"`
	Rotation float64  `json:"rotation"`
	ScaleX   float64  `json:"scaleX"`
	ScaleY   float64  `json:"scaleY"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Clone returns a copy of s with its own metadata map.
func (s CharmState) Clone() CharmState {
	s.Metadata = s.Metadata.Clone()
	return s
}

// Charm re-derives a Charm entity from the snapshot value.
func (s CharmState) Charm() Charm {
	return Charm{
		ID:       s.ID,
		Position: Point{X: s.X, Y: s.Y},
		Size:     Size{Width: s.Width, Height: s.Height},
		Rotation: s.Rotation,
		ScaleX:   defaultScale(s.ScaleX),
		ScaleY:   defaultScale(s.ScaleY),
		Metadata: s.Metadata.Clone(),
	}
}

// CharmSpec describes a charm to be placed. Explicit Width and Height win;
// otherwise the size is derived from the source image aspect ratio, scaled
// so that the longer side equals MaxSize.
type CharmSpec struct {
	ID          string   `json:"id,omitempty"`
	Width       float64  `json:"width,omitempty"`
	Height      float64  `json:"height,omitempty"`
	ImageWidth  float64  `json:"imageWidth,omitempty"`
	ImageHeight float64  `json:"imageHeight,omitempty"`
	MaxSize     float64  `json:"maxSize,omitempty"`
	Rotation    float64  `json:"rotation,omitempty"`
	ScaleX      float64  `json:"scaleX,omitempty"`
	ScaleY      float64  `json:"scaleY,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// Dimensions derives the charm size. defaultMax is used when s has no
// MaxSize of its own. Returns ErrInvalidCharmSpec when no positive size can
// be derived.
func (s CharmSpec) Dimensions(defaultMax float64) (Size, error) {
	if s.Width > 0 && s.Height > 0 {
		return Size{Width: s.Width, Height: s.Height}, nil
	}
	if s.Width != 0 || s.Height != 0 {
		return Size{}, ErrInvalidCharmSpec
	}
	if s.ImageWidth <= 0 || s.ImageHeight <= 0 {
		return Size{}, ErrInvalidCharmSpec
	}
	maxSize := s.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMax
	}
	if maxSize <= 0 {
		return Size{}, ErrInvalidCharmSpec
	}
	scale := maxSize / math.Max(s.ImageWidth, s.ImageHeight)
	return Size{Width: s.ImageWidth * scale, Height: s.ImageHeight * scale}, nil
}

// NewCharm builds the charm described by s at position p with the
// given id. Metadata is copied.
func (s CharmSpec) NewCharm(id string, p Point, size Size) Charm {
	return Charm{
		ID:       id,
		Position: p,
		Size:     size,
		Rotation: s.Rotation,
		ScaleX:   defaultScale(s.ScaleX),
		ScaleY:   defaultScale(s.ScaleY),
		Metadata: s.Metadata.Clone(),
	}
}

func defaultScale(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
