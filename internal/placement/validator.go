package placement

import (
	"log/slog"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// Context carries what the validator needs to know about the composition
// around the charm being placed.
type Context struct {
	Stage  types.Size   // Stage dimensions; the charm must stay fully inside.
	Base   *types.Rect  // Base design bounds, or nil when none is loaded.
	Margin float64      // How far past the base bounds a charm may sit.
	Others []types.Rect // Every other charm; never the one being placed.
}

// Resolution describes how a requested position was turned into a legal one.
type Resolution struct {
	Position  types.Point
	Clamped   bool // Bounds moved the position.
	Relocated bool // The free-space search found a clear spot.
	Fallback  bool // The search was exhausted; Position may still collide.
}

// Validator produces legal positions: it clamps to the stage, then to the
// base design margin, then resolves collisions through the free-space search.
type Validator struct {
	minSpacing float64
	search     FreeSpace
	logger     *slog.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithSearch sets the free-space scan used for collision resolution.
func WithSearch(f FreeSpace) ValidatorOption {
	return func(v *Validator) { v.search = f }
}

// WithLogger sets the logger used to report search fallbacks.
func WithLogger(l *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewValidator returns a validator that keeps charms minSpacing apart.
func NewValidator(minSpacing float64, opts ...ValidatorOption) *Validator {
	v := &Validator{
		minSpacing: minSpacing,
		search:     DefaultFreeSpace(),
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// MinSpacing returns the edge-to-edge spacing the validator enforces.
func (v *Validator) MinSpacing() float64 { return v.minSpacing }

// StageBounds returns the range of legal top-left positions for a charm of
// the given size on the stage.
func StageBounds(size types.Size, stage types.Size) types.Rect {
	return types.Rect{Width: stage.Width - size.Width, Height: stage.Height - size.Height}
}

// BaseBounds returns the range of legal top-left positions for a charm of the
// given size around the base design, margin included.
func BaseBounds(size types.Size, base types.Rect, margin float64) types.Rect {
	return types.Rect{
		X:      base.X - margin,
		Y:      base.Y - margin,
		Width:  base.Width + 2*margin - size.Width,
		Height: base.Height + 2*margin - size.Height,
	}
}

// Clamp applies the stage clamp followed by the base design clamp.
func Clamp(size types.Size, p types.Point, ctx Context) types.Point {
	p = StageBounds(size, ctx.Stage).Clamp(p)
	if ctx.Base != nil {
		p = BaseBounds(size, *ctx.Base, ctx.Margin).Clamp(p)
	}
	return p
}

// Resolve returns a legal position for a charm of the given size requested at
// p. It never fails: when no clear spot exists within the search radius the
// clamped position is returned even though it may collide.
func (v *Validator) Resolve(size types.Size, p types.Point, ctx Context) types.Point {
	return v.Check(size, p, ctx).Position
}

// Check is Resolve with the details of what happened.
func (v *Validator) Check(size types.Size, p types.Point, ctx Context) Resolution {
	clamped := Clamp(size, p, ctx)
	res := Resolution{Position: clamped, Clamped: clamped != p}

	if !HasCollision(types.RectAt(clamped, size), ctx.Others, v.minSpacing) {
		return res
	}

	blocked := func(q types.Point) bool {
		if !inBounds(size, q, ctx) {
			return true
		}
		return HasCollision(types.RectAt(q, size), ctx.Others, v.minSpacing)
	}
	found, ok := v.search.Find(clamped, blocked)
	if !ok {
		v.logger.Debug("free space search exhausted",
			"x", clamped.X, "y", clamped.Y, "radius", v.search.Radius)
		res.Fallback = true
		return res
	}
	res.Position = found
	res.Relocated = true
	return res
}

// inBounds reports whether p is a legal top-left position under both clamps.
func inBounds(size types.Size, p types.Point, ctx Context) bool {
	if !StageBounds(size, ctx.Stage).Contains(p) {
		return false
	}
	if ctx.Base != nil && !BaseBounds(size, *ctx.Base, ctx.Margin).Contains(p) {
		return false
	}
	return true
}
