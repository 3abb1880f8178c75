package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/charmsmith/internal/paths"
	"github.com/mesh-intelligence/charmsmith/internal/sqlite"
	"github.com/mesh-intelligence/charmsmith/pkg/composer"
	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// workspace is an attached history store with the session restored from it.
type workspace struct {
	session *composer.Session
	backend *sqlite.Backend
	dataDir string
}

// resolve returns the merged settings and data directory for this
// invocation.
func (a *app) resolve() (settings, string, error) {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return settings{}, "", sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	st, err := loadConfig(configDir)
	if err != nil {
		return settings{}, "", userError(err)
	}
	if a.flags.designFile != "" {
		d, err := loadDesignFile(a.flags.designFile)
		if err != nil {
			return settings{}, "", userError(err)
		}
		st.engine.BaseDesign = &d
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, st.dataDir)
	if err != nil {
		return settings{}, "", sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	return st, dataDir, nil
}

// open attaches the store and restores the session from it. The caller must
// call close.
func (a *app) open() (*workspace, error) {
	st, dataDir, err := a.resolve()
	if err != nil {
		return nil, err
	}

	backend := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := backend.Attach(types.StoreConfig{Backend: st.backend, DataDir: dataDir}); err != nil {
		if errors.Is(err, types.ErrBackendUnknown) || errors.Is(err, types.ErrBackendEmpty) {
			return nil, userError(fmt.Errorf("attach store: %w", err))
		}
		return nil, sysError(fmt.Errorf("attach store: %w", err))
	}

	session, err := composer.New(st.engine,
		composer.WithPersister(backend),
		composer.WithLogger(a.logger))
	if err != nil {
		backend.Detach()
		return nil, userError(err)
	}
	if err := session.Load(); err != nil {
		backend.Detach()
		return nil, sysError(err)
	}
	return &workspace{session: session, backend: backend, dataDir: dataDir}, nil
}

// close persists when asked and detaches the store.
func (w *workspace) close(persist bool) error {
	var perr error
	if persist {
		perr = w.session.Persist()
	}
	if err := w.backend.Detach(); err != nil && perr == nil {
		perr = err
	}
	if perr != nil {
		return sysError(perr)
	}
	return nil
}

// run opens a workspace, runs fn, and closes it. Mutating commands persist
// on the way out.
func (a *app) run(mutating bool, fn func(w *workspace) error) error {
	w, err := a.open()
	if err != nil {
		return err
	}
	runErr := fn(w)
	closeErr := w.close(mutating && runErr == nil)
	if runErr != nil {
		return classify(runErr)
	}
	return closeErr
}

// classify assigns an exit code to errors returned by the engine.
func classify(err error) error {
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrInvalidCharmSpec),
		errors.Is(err, types.ErrIndexOutOfRange),
		errors.Is(err, types.ErrDuplicateID),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, composer.ErrNoDrag):
		return userError(err)
	}
	return sysError(err)
}

// output writes v as indented JSON in --json mode, otherwise calls text.
func (a *app) output(cmd *cobra.Command, v any, text func(out io.Writer)) error {
	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return sysError(fmt.Errorf("encode output: %w", err))
		}
		return nil
	}
	text(out)
	return nil
}

// parsePoint parses two positional coordinates.
func parsePoint(xs, ys string) (types.Point, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return types.Point{}, userError(fmt.Errorf("invalid x coordinate %q", xs))
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return types.Point{}, userError(fmt.Errorf("invalid y coordinate %q", ys))
	}
	return types.Point{X: x, Y: y}, nil
}

// softFailure reports an operation that did not apply as a user error.
func softFailure(format string, args ...any) error {
	return userError(fmt.Errorf(format, args...))
}
