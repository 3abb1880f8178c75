package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

func printInfo(out io.Writer, info types.HistoryInfo) {
	fmt.Fprintf(out, "history: %d of %d states, at %d\n", info.Size, info.MaxSize, info.CurrentIndex)
	fmt.Fprintf(out, "undo: %t  redo: %t\n", info.CanUndo, info.CanRedo)
	if !info.Oldest.IsZero() {
		fmt.Fprintf(out, "span: %s .. %s\n", info.Oldest.Format(time.RFC3339), info.Newest.Format(time.RFC3339))
	}
	for _, m := range info.Milestones {
		fmt.Fprintf(out, "milestone: %s\n", m)
	}
}

func newUndoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Restore the previous composition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(true, func(w *workspace) error {
				ok, err := w.session.Undo()
				if err != nil {
					return err
				}
				if !ok {
					return softFailure("nothing to undo")
				}
				info := w.session.HistoryInfo()
				return a.output(cmd, info, func(out io.Writer) {
					fmt.Fprintf(out, "undone; at state %d of %d\n", info.CurrentIndex, info.Size)
				})
			})
		},
	}
}

func newRedoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Restore the next composition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(true, func(w *workspace) error {
				ok, err := w.session.Redo()
				if err != nil {
					return err
				}
				if !ok {
					return softFailure("nothing to redo")
				}
				info := w.session.HistoryInfo()
				return a.output(cmd, info, func(out io.Writer) {
					fmt.Fprintf(out, "redone; at state %d of %d\n", info.CurrentIndex, info.Size)
				})
			})
		},
	}
}

func newJumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "jump <index>",
		Short: "Restore the composition at a history index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return userError(fmt.Errorf("invalid index %q", args[0]))
			}
			return a.run(true, func(w *workspace) error {
				if err := w.session.JumpToState(index); err != nil {
					return err
				}
				info := w.session.HistoryInfo()
				return a.output(cmd, info, func(out io.Writer) {
					fmt.Fprintf(out, "at state %d of %d\n", info.CurrentIndex, info.Size)
				})
			})
		},
	}
}

func newMilestoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "milestone <label>",
		Short: "Label the current state so compaction keeps it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(true, func(w *workspace) error {
				ok, err := w.session.MarkMilestone(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return softFailure("cannot mark milestone %q", args[0])
				}
				return a.output(cmd, w.session.HistoryInfo(), func(out io.Writer) {
					fmt.Fprintf(out, "marked milestone %q\n", args[0])
				})
			})
		},
	}
}

func newBranchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "branch <name>",
		Short: "Start a named branch from the current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(true, func(w *workspace) error {
				branch, ok, err := w.session.CreateBranch(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return softFailure("cannot branch %q", args[0])
				}
				return a.output(cmd, branch, func(out io.Writer) {
					fmt.Fprintf(out, "branch %s started from %s\n", branch.Branch, branch.BranchedFrom)
				})
			})
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show and manage the undo history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(false, func(w *workspace) error {
				info := w.session.HistoryInfo()
				return a.output(cmd, info, func(out io.Writer) { printInfo(out, info) })
			})
		},
	}
	cmd.AddCommand(
		newHistoryExportCmd(a),
		newHistoryImportCmd(a),
		newHistoryOptimizeCmd(a),
		newHistoryCleanupCmd(a),
		newHistoryMilestonesCmd(a),
		newHistoryTrailCmd(a),
	)
	return cmd
}

func newHistoryExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the history as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(false, func(w *workspace) error {
				data, err := w.session.ExportHistoryJSON()
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}
				if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
					return sysError(fmt.Errorf("write %s: %w", output, err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d states to %s\n", w.session.HistoryInfo().Size, output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newHistoryImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the history with an exported JSON file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return userError(fmt.Errorf("read %s: %w", args[0], err))
			}
			return a.run(true, func(w *workspace) error {
				if err := w.session.ImportHistoryJSON(data); err != nil {
					return userError(err)
				}
				info := w.session.HistoryInfo()
				return a.output(cmd, info, func(out io.Writer) {
					fmt.Fprintf(out, "imported %d states; at state %d\n", info.Size, info.CurrentIndex)
				})
			})
		},
	}
}

func newHistoryOptimizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Drop consecutive duplicate states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(true, func(w *workspace) error {
				n, err := w.session.OptimizeHistory()
				if err != nil {
					return err
				}
				return a.output(cmd, map[string]int{"removed": n}, func(out io.Writer) {
					fmt.Fprintf(out, "removed %d states\n", n)
				})
			})
		},
	}
}

func newHistoryCleanupCmd(a *app) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop states older than --max-age, keeping milestones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge <= 0 {
				return userError(fmt.Errorf("--max-age must be positive"))
			}
			return a.run(true, func(w *workspace) error {
				n, err := w.session.CleanupOldStates(maxAge)
				if err != nil {
					return err
				}
				return a.output(cmd, map[string]int{"removed": n}, func(out io.Writer) {
					fmt.Fprintf(out, "removed %d states\n", n)
				})
			})
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 7*24*time.Hour, "maximum age of kept states")
	return cmd
}

func newHistoryMilestonesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "milestones",
		Short: "List persisted milestone states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(false, func(w *workspace) error {
				ms, err := w.backend.Milestones()
				if err != nil {
					return err
				}
				return a.output(cmd, ms, func(out io.Writer) {
					tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "MILESTONE\tSNAPSHOT\tCHARMS\tSAVED")
					for _, m := range ms {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.Milestone, m.ID, len(m.Charms), m.Time().Format(time.RFC3339))
					}
					tw.Flush()
				})
			})
		},
	}
}

func newHistoryTrailCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trail <id>",
		Short: "Show the positions a charm held across the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(false, func(w *workspace) error {
				trail, err := w.backend.CharmTrail(args[0])
				if err != nil {
					return err
				}
				if len(trail) == 0 {
					return fmt.Errorf("trail of %s: %w", args[0], types.ErrNotFound)
				}
				return a.output(cmd, trail, func(out io.Writer) {
					for i, p := range trail {
						fmt.Fprintf(out, "%d: (%g, %g)\n", i, p.X, p.Y)
					}
				})
			})
		},
	}
}
