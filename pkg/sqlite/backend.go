// Package sqlite provides the public API for the SQLite history store.
// This package exposes the factory function for creating stores while
// keeping implementation details internal.
package sqlite

import (
	"log/slog"

	"github.com/mesh-intelligence/charmsmith/internal/sqlite"
	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// Store persists composition history to history.jsonl in its data directory
// and indexes it in SQLite for milestone and trail queries. It satisfies
// types.HistoryPersister, so it can be handed to composer.WithPersister.
type Store interface {
	types.HistoryPersister
	Attach(config types.StoreConfig) error
	Detach() error
	Milestones() ([]types.Snapshot, error)
	CharmTrail(id string) ([]types.Point, error)
}

// NewBackend creates a new SQLite history store. The store is not attached;
// call Attach with a StoreConfig to initialize. A nil logger uses the
// default logger.
//
// Example:
//
//	store := sqlite.NewBackend(nil)
//	err := store.Attach(types.StoreConfig{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".charmsmith",
//	})
//	defer store.Detach()
//	session, err := composer.New(types.DefaultConfig(), composer.WithPersister(store))
func NewBackend(logger *slog.Logger) Store {
	return sqlite.NewBackend(sqlite.WithLogger(logger))
}
