// Package cli implements the charmsmith command-line interface. Every
// invocation attaches the history store, restores the composition under the
// history cursor, runs one command, persists, and detaches.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/charmsmith/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// userError marks err as caused by the invocation.
func userError(err error) error { return &exitError{code: exitUserError, err: err} }

// sysError marks err as an environment or storage failure.
func sysError(err error) error { return &exitError{code: exitSysError, err: err} }

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir  string
	dataDir    string
	designFile string
	jsonMode   bool
	verbose    bool
}

// app is the state shared by the commands of one invocation.
type app struct {
	flags  rootFlags
	logger *slog.Logger
}

// NewRootCmd creates the top-level "charmsmith" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: slog.Default()}

	root := &cobra.Command{
		Use:   "charmsmith",
		Short: "Compose charm jewelry designs",
		Long: "Charmsmith places charms on a stage or a base design, keeps them from\n" +
			"overlapping, snaps them onto attachment zones, and keeps an undoable\n" +
			"history of every change.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if a.flags.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "history directory (default: $(CWD)/"+paths.DataDirName+")")
	pf.StringVar(&a.flags.designFile, "design", "", "base design YAML file (overrides config)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output as JSON")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newPlaceCmd(a),
		newMoveCmd(a),
		newRemoveCmd(a),
		newClearCmd(a),
		newListCmd(a),
		newSnapCmd(a),
		newNearestCmd(a),
		newUndoCmd(a),
		newRedoCmd(a),
		newJumpCmd(a),
		newHistoryCmd(a),
		newMilestoneCmd(a),
		newBranchCmd(a),
		newServeCmd(a),
	)
	return root
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Flag and argument errors from cobra.
	return exitUserError
}

// Execute runs the CLI against the process arguments and exits.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}
