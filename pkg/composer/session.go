// Package composer is the orchestration layer of charmsmith. A Session owns
// the charm store, the history log, and the drag constraint, and is the only
// component that mutates them. Every committing mutation records a snapshot
// and, when a persister is attached, writes the log through it.
//
// A Session is not safe for concurrent use. Callers that share one, such as
// the HTTP server, serialize access.
package composer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/charmsmith/internal/charmstore"
	"github.com/mesh-intelligence/charmsmith/internal/history"
	"github.com/mesh-intelligence/charmsmith/internal/placement"
	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// Session is one composition being edited.
type Session struct {
	cfg       types.Config
	store     *charmstore.Store
	history   *history.Manager
	drag      placement.DragConstraint
	dragging  string
	persister types.HistoryPersister
	logger    *slog.Logger

	charmIDs    func() string
	snapshotIDs func() string
	now         func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithPersister attaches the history persistence collaborator.
func WithPersister(p types.HistoryPersister) Option {
	return func(s *Session) { s.persister = p }
}

// WithLogger sets the session logger. It is shared with the store and the
// history manager.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCharmIDs sets the generator for charm ids.
func WithCharmIDs(gen func() string) Option {
	return func(s *Session) { s.charmIDs = gen }
}

// WithSnapshotIDs sets the generator for snapshot ids.
func WithSnapshotIDs(gen func() string) Option {
	return func(s *Session) { s.snapshotIDs = gen }
}

// WithClock sets the time source for snapshot timestamps and cleanup.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New validates cfg and returns a session holding an empty composition. The
// empty composition is recorded as the first history entry so the first
// placement can be undone.
func New(cfg types.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &Session{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}

	storeOpts := []charmstore.Option{charmstore.WithLogger(s.logger)}
	if s.charmIDs != nil {
		storeOpts = append(storeOpts, charmstore.WithIDGenerator(s.charmIDs))
	}
	s.store = charmstore.New(cfg, storeOpts...)

	histOpts := []history.Option{
		history.WithMaxSize(cfg.MaxHistorySize),
		history.WithLogger(s.logger),
	}
	if s.snapshotIDs != nil {
		histOpts = append(histOpts, history.WithIDGenerator(s.snapshotIDs))
	}
	if s.now != nil {
		histOpts = append(histOpts, history.WithClock(s.now))
	}
	s.history = history.New(histOpts...)
	s.history.SaveState(s.store.Snapshot())
	return s, nil
}

// Config returns the session configuration.
func (s *Session) Config() types.Config { return s.cfg }

// Load replaces the history with the persisted log, if any, and restores the
// composition under its cursor. It is a no-op without a persister or when
// nothing was saved.
func (s *Session) Load() error {
	if s.persister == nil {
		return nil
	}
	data, err := s.persister.LoadPersistedHistory()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if data == nil || len(data.History) == 0 {
		return nil
	}
	s.history.Import(*data)
	s.restoreCurrent()
	s.logger.Debug("history loaded", "size", s.history.Len(), "index", s.history.CurrentIndex())
	return nil
}

// Persist writes the history through the persister regardless of the
// auto-persist setting.
func (s *Session) Persist() error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.PersistHistory(s.history.Export()); err != nil {
		return fmt.Errorf("persisting history: %w", err)
	}
	return nil
}

// autoPersist persists when a persister is attached and auto-persist is on.
func (s *Session) autoPersist() error {
	if !s.cfg.AutoPersist {
		return nil
	}
	return s.Persist()
}

// commit records the current composition and persists the log.
func (s *Session) commit() error {
	if !s.history.SaveState(s.store.Snapshot()) {
		return nil
	}
	return s.autoPersist()
}

// restoreCurrent loads the snapshot under the history cursor into the store.
func (s *Session) restoreCurrent() {
	if cur, ok := s.history.Current(); ok {
		s.store.Restore(cur.Charms)
	}
}

// CharmData returns copies of every charm in insertion order.
func (s *Session) CharmData() []types.Charm { return s.store.CharmData() }

// Get returns a copy of charm id.
func (s *Session) Get(id string) (types.Charm, bool) { return s.store.Get(id) }

// Conflicts returns the charms that id overlaps after a free-space fallback.
func (s *Session) Conflicts(id string) ([]string, error) { return s.store.Conflicts(id) }

// Place creates a charm near p and records the new composition.
func (s *Session) Place(spec types.CharmSpec, p types.Point) (types.Charm, error) {
	c, err := s.store.Place(spec, p)
	if err != nil {
		return types.Charm{}, err
	}
	return c, s.commit()
}

// Move relocates charm id near p and records the new composition.
func (s *Session) Move(id string, p types.Point) (types.Charm, error) {
	c, err := s.store.Move(id, p)
	if err != nil {
		return types.Charm{}, err
	}
	return c, s.commit()
}

// Remove deletes charm id. It reports whether a charm was removed.
func (s *Session) Remove(id string) (bool, error) {
	if !s.store.Remove(id) {
		return false, nil
	}
	return true, s.commit()
}

// ClearAll removes every charm.
func (s *Session) ClearAll() error {
	s.store.ClearAll()
	return s.commit()
}

// SnapToAttachmentZone pulls charm id onto the nearest free zone within the
// configured snap threshold. Reports whether it snapped.
func (s *Session) SnapToAttachmentZone(id string) (types.Charm, bool, error) {
	c, snapped, err := s.store.SnapToZone(id, s.cfg.SnapThreshold)
	if err != nil || !snapped {
		return c, false, err
	}
	return c, true, s.commit()
}

// FindNearestAttachmentZone returns the free zone nearest to p.
func (s *Session) FindNearestAttachmentZone(p types.Point) (types.AttachmentZone, bool) {
	return s.store.FindNearestZone(p)
}

// ZoneOf returns the zone held by charm id.
func (s *Session) ZoneOf(id string) (types.AttachmentZone, bool) { return s.store.ZoneOf(id) }

// Zones returns the attachment zones of the loaded base design.
func (s *Session) Zones() []types.AttachmentZone { return s.store.Zones() }

// LoadBaseDesign installs design. Charms do not move, so no history entry
// is recorded.
func (s *Session) LoadBaseDesign(design types.BaseDesign) {
	s.store.LoadBaseDesign(design)
}

// BaseDesign returns the loaded base design.
func (s *Session) BaseDesign() (types.BaseDesign, bool) { return s.store.BaseDesign() }

// ScaleBaseDesign rescales the base design. Snapped charms follow their
// zones, so the result is recorded. Reports false when no design is loaded
// or scale is not positive.
func (s *Session) ScaleBaseDesign(scale float64) (bool, error) {
	if !s.store.ScaleBaseDesign(scale) {
		return false, nil
	}
	return true, s.commit()
}
