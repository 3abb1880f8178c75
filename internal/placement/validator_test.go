package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

var (
	testStage = types.Size{Width: 1000, Height: 750}
	testBase  = types.Rect{X: 200, Y: 150, Width: 600, Height: 450}
	charm50   = types.Size{Width: 50, Height: 50}
)

func TestValidatorClamp(t *testing.T) {
	v := NewValidator(10)

	tests := []struct {
		name string
		base *types.Rect
		in   types.Point
		want types.Point
	}{
		{"inside stage untouched", nil, types.Point{X: 10, Y: 10}, types.Point{X: 10, Y: 10}},
		{"negative clamps to origin", nil, types.Point{X: -20, Y: -5}, types.Point{X: 0, Y: 0}},
		{"far edge keeps charm on stage", nil, types.Point{X: 990, Y: 740}, types.Point{X: 950, Y: 700}},
		{"base margin lower bound", &testBase, types.Point{X: 10, Y: 10}, types.Point{X: 150, Y: 100}},
		{"base margin upper bound", &testBase, types.Point{X: 990, Y: 740}, types.Point{X: 800, Y: 600}},
		{"inside base untouched", &testBase, types.Point{X: 500, Y: 375}, types.Point{X: 500, Y: 375}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := Context{Stage: testStage, Base: tt.base, Margin: 50}
			res := v.Check(charm50, tt.in, ctx)
			assert.Equal(t, tt.want, res.Position)
			assert.Equal(t, tt.in != tt.want, res.Clamped)
			assert.False(t, res.Relocated)
			assert.False(t, res.Fallback)
		})
	}
}

func TestValidatorScenarioRelocatesSecondCharm(t *testing.T) {
	v := NewValidator(10)
	ctx := Context{Stage: testStage, Base: &testBase, Margin: 50}

	a := v.Resolve(charm50, types.Point{X: 500, Y: 375}, ctx)
	assert.Equal(t, types.Point{X: 500, Y: 375}, a)

	ctx.Others = []types.Rect{types.RectAt(a, charm50)}
	requested := types.Point{X: 505, Y: 375}
	res := v.Check(charm50, requested, ctx)

	require.True(t, res.Relocated)
	assert.False(t, res.Fallback)
	assert.NotEqual(t, requested, res.Position)
	assert.False(t, HasCollision(types.RectAt(res.Position, charm50), ctx.Others, 10))
	// First clear probe: radius 60 at angle 0.
	assert.InDelta(t, 565, res.Position.X, 1e-9)
	assert.InDelta(t, 375, res.Position.Y, 1e-9)
}

func TestValidatorFallbackKeepsClampedPosition(t *testing.T) {
	v := NewValidator(10)
	blocker := types.Rect{X: 0, Y: 0, Width: 1000, Height: 750}
	ctx := Context{Stage: testStage, Others: []types.Rect{blocker}}

	res := v.Check(charm50, types.Point{X: 400, Y: 300}, ctx)
	assert.True(t, res.Fallback)
	assert.False(t, res.Relocated)
	assert.Equal(t, types.Point{X: 400, Y: 300}, res.Position)
	assert.True(t, HasCollision(types.RectAt(res.Position, charm50), ctx.Others, 10),
		"fallback leaves the charm overlapping")
}

func TestValidatorRelocationStaysInBounds(t *testing.T) {
	v := NewValidator(10)
	// A charm already in the top-left corner; the new one is requested on
	// top of it, so probes pointing off-stage must be rejected.
	ctx := Context{
		Stage:  testStage,
		Others: []types.Rect{{X: 0, Y: 0, Width: 50, Height: 50}},
	}
	got := v.Resolve(charm50, types.Point{X: 0, Y: 0}, ctx)
	assert.GreaterOrEqual(t, got.X, 0.0)
	assert.GreaterOrEqual(t, got.Y, 0.0)
	assert.False(t, HasCollision(types.RectAt(got, charm50), ctx.Others, 10))
}

func TestValidatorNoOverlapInvariant(t *testing.T) {
	v := NewValidator(10)
	ctx := Context{Stage: testStage, Base: &testBase, Margin: 50}

	var placed []types.Rect
	requests := []types.Point{
		{X: 500, Y: 375}, {X: 505, Y: 375}, {X: 495, Y: 380}, {X: 500, Y: 370},
		{X: 510, Y: 390}, {X: 300, Y: 300}, {X: 305, Y: 300}, {X: 700, Y: 500},
	}
	for _, req := range requests {
		ctx.Others = placed
		res := v.Check(charm50, req, ctx)
		require.False(t, res.Fallback, "request %v", req)
		placed = append(placed, types.RectAt(res.Position, charm50))
	}

	for i := range placed {
		for j := range placed {
			if i == j {
				continue
			}
			assert.False(t, HasCollision(placed[i], []types.Rect{placed[j]}, 10),
				"charms %d and %d overlap", i, j)
		}
	}
}

func TestValidatorWithSearch(t *testing.T) {
	v := NewValidator(0, WithSearch(FreeSpace{Radius: 5, Step: 5}), WithLogger(nil))
	ctx := Context{
		Stage:  testStage,
		Others: []types.Rect{{X: 100, Y: 100, Width: 50, Height: 50}},
	}
	res := v.Check(charm50, types.Point{X: 100, Y: 100}, ctx)
	assert.True(t, res.Fallback, "a single 5 unit ring cannot clear a full overlap")
	assert.Equal(t, 0.0, v.MinSpacing())
}
