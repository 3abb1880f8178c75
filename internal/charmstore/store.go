// Package charmstore holds the authoritative in-memory collection of placed
// charms. It is the only writer of charm positions and delegates every
// legality decision to the placement engine. Store is not safe for concurrent
// use; one orchestrating caller owns it.
package charmstore

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/charmsmith/internal/placement"
	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// Store is the live collection of charms keyed by id. Charms keep their
// insertion order, which is also the order of snapshots.
type Store struct {
	cfg       types.Config
	charms    map[string]*types.Charm
	order     []string
	zones     *placement.ZoneManager
	validator *placement.Validator
	newID     func() string
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the generator used for charms placed without an id.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// newUUID generates a UUID v7 string.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// New creates an empty store for the given engine configuration. When cfg
// names a base design its zones are loaded.
func New(cfg types.Config, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg,
		charms: make(map[string]*types.Charm),
		zones:  placement.NewZoneManager(),
		newID:  newUUID,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.validator = placement.NewValidator(cfg.MinSpacing,
		placement.WithSearch(placement.FreeSpace{Radius: cfg.SearchRadius, Step: cfg.SearchStep}),
		placement.WithLogger(s.logger))
	if cfg.BaseDesign != nil {
		s.zones.Load(*cfg.BaseDesign)
	}
	return s
}

// Config returns the engine configuration the store was built with.
func (s *Store) Config() types.Config { return s.cfg }

// Len returns the number of placed charms.
func (s *Store) Len() int { return len(s.order) }

// Get returns a copy of the charm with the given id.
func (s *Store) Get(id string) (types.Charm, bool) {
	c, ok := s.charms[id]
	if !ok {
		return types.Charm{}, false
	}
	return c.Clone(), true
}

// CharmData returns copies of every charm in insertion order. It is what the
// rendering collaborator observes.
func (s *Store) CharmData() []types.Charm {
	out := make([]types.Charm, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.charms[id].Clone())
	}
	return out
}

// Place creates a charm from spec at the legal position nearest to p. An id
// is generated when spec.ID is empty. Returns ErrInvalidCharmSpec when no
// positive size can be derived, ErrInvalidID when the id contains
// whitespace, and ErrDuplicateID when the id is taken.
func (s *Store) Place(spec types.CharmSpec, p types.Point) (types.Charm, error) {
	size, err := spec.Dimensions(s.cfg.MaxCharmSize)
	if err != nil {
		return types.Charm{}, fmt.Errorf("place charm: %w", err)
	}
	id := spec.ID
	if strings.ContainsFunc(id, unicode.IsSpace) {
		return types.Charm{}, fmt.Errorf("place charm %q: %w", id, types.ErrInvalidID)
	}
	if id == "" {
		id = s.newID()
	}
	if _, exists := s.charms[id]; exists {
		return types.Charm{}, fmt.Errorf("place charm %s: %w", id, types.ErrDuplicateID)
	}

	res := s.validator.Check(size, p, s.context(""))
	c := spec.NewCharm(id, res.Position, size)
	s.insert(&c)

	s.logger.Debug("charm placed", "charm_id", id,
		"x", res.Position.X, "y", res.Position.Y,
		"relocated", res.Relocated, "fallback", res.Fallback)
	return c.Clone(), nil
}

// Move re-validates the charm at p and updates it in place. Any zone the
// charm held is released. Returns ErrNotFound for unknown ids.
func (s *Store) Move(id string, p types.Point) (types.Charm, error) {
	c, ok := s.charms[id]
	if !ok {
		return types.Charm{}, fmt.Errorf("move charm %s: %w", id, types.ErrNotFound)
	}
	s.zones.Release(id)

	res := s.validator.Check(c.Size, p, s.context(id))
	c.Position = res.Position

	s.logger.Debug("charm moved", "charm_id", id,
		"x", res.Position.X, "y", res.Position.Y,
		"relocated", res.Relocated, "fallback", res.Fallback)
	return c.Clone(), nil
}

// Remove deletes the charm and releases its zone. It reports whether a charm
// was removed.
func (s *Store) Remove(id string) bool {
	if _, ok := s.charms[id]; !ok {
		return false
	}
	delete(s.charms, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.zones.Release(id)
	s.logger.Debug("charm removed", "charm_id", id)
	return true
}

// ClearAll empties the store and releases every zone.
func (s *Store) ClearAll() {
	s.charms = make(map[string]*types.Charm)
	s.order = nil
	s.zones.ReleaseAll()
}

// Snapshot returns a deep value copy of every charm, in insertion order.
// Nothing in the result aliases a live charm.
func (s *Store) Snapshot() []types.CharmState {
	out := make([]types.CharmState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.charms[id].State())
	}
	return out
}

// Restore replaces the live set with charms re-derived from states. Positions
// are taken as-is; history is assumed consistent, so no collision checks
// run. Zone occupancy is re-derived for charms centred on a zone.
func (s *Store) Restore(states []types.CharmState) {
	s.ClearAll()
	for _, st := range states {
		if _, dup := s.charms[st.ID]; dup || st.ID == "" {
			s.logger.Warn("skipping charm in restore", "charm_id", st.ID)
			continue
		}
		c := st.Charm()
		if c.Size.Width <= 0 || c.Size.Height <= 0 {
			c.Size = types.Size{Width: s.cfg.MaxCharmSize, Height: s.cfg.MaxCharmSize}
		}
		s.insert(&c)
		s.zones.Reclaim(c.ID, c.Rect().Center())
	}
}

// Conflicts returns the ids of charms that the given charm collides with at
// the configured spacing. It is non-empty only after a free-space fallback.
func (s *Store) Conflicts(id string) ([]string, error) {
	c, ok := s.charms[id]
	if !ok {
		return nil, fmt.Errorf("conflicts for charm %s: %w", id, types.ErrNotFound)
	}
	var ids []string
	var rects []types.Rect
	for _, oid := range s.order {
		if oid == id {
			continue
		}
		ids = append(ids, oid)
		rects = append(rects, s.charms[oid].Rect())
	}
	var out []string
	for _, i := range placement.Collisions(c.Rect(), rects, s.cfg.MinSpacing) {
		out = append(out, ids[i])
	}
	return out, nil
}

func (s *Store) insert(c *types.Charm) {
	s.charms[c.ID] = c
	s.order = append(s.order, c.ID)
}

// context builds the placement context for a charm, leaving out exclude.
func (s *Store) context(exclude string) placement.Context {
	ctx := placement.Context{
		Stage:  s.cfg.Stage,
		Margin: s.cfg.Margin,
		Others: make([]types.Rect, 0, len(s.order)),
	}
	if d, ok := s.zones.Design(); ok {
		b := d.Bounds
		ctx.Base = &b
	}
	for _, id := range s.order {
		if id == exclude {
			continue
		}
		ctx.Others = append(ctx.Others, s.charms[id].Rect())
	}
	return ctx
}
