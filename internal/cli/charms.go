package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// placedCharm is the output of place and move.
type placedCharm struct {
	types.Charm
	Conflicts []string `json:"conflicts,omitempty"`
}

func printCharm(out io.Writer, verb string, c types.Charm, conflicts []string) {
	fmt.Fprintf(out, "%s %s at (%g, %g) size %gx%g\n",
		verb, c.ID, c.Position.X, c.Position.Y, c.Size.Width, c.Size.Height)
	if len(conflicts) > 0 {
		fmt.Fprintf(out, "warning: no free space found; overlaps %v\n", conflicts)
	}
}

func newPlaceCmd(a *app) *cobra.Command {
	var spec types.CharmSpec
	cmd := &cobra.Command{
		Use:   "place <x> <y>",
		Short: "Place a charm near a position",
		Long: `Place creates a charm whose top-left corner is as close as possible to
(x, y) without overlapping other charms. Give --width and --height, or the
source image size with --image-width and --image-height to scale the longer
side to the max charm size.`,
		Example: `  charmsmith place 400 300 --width 40 --height 40
  charmsmith place 400 300 --image-width 600 --image-height 300 --meta title=Moon`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			return a.run(true, func(w *workspace) error {
				c, err := w.session.Place(spec, p)
				if err != nil {
					return err
				}
				conflicts, _ := w.session.Conflicts(c.ID)
				return a.output(cmd, placedCharm{Charm: c, Conflicts: conflicts}, func(out io.Writer) {
					printCharm(out, "placed", c, conflicts)
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&spec.ID, "id", "", "charm id (default: generated)")
	f.Float64Var(&spec.Width, "width", 0, "charm width")
	f.Float64Var(&spec.Height, "height", 0, "charm height")
	f.Float64Var(&spec.ImageWidth, "image-width", 0, "source image width")
	f.Float64Var(&spec.ImageHeight, "image-height", 0, "source image height")
	f.Float64Var(&spec.MaxSize, "max-size", 0, "longest side when sizing from the image (default: config max_charm_size)")
	f.Float64Var(&spec.Rotation, "rotation", 0, "rotation in degrees")
	f.StringToStringVar((*map[string]string)(&spec.Metadata), "meta", nil, "metadata key=value pairs")
	return cmd
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <x> <y>",
		Short: "Move a charm near a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[1], args[2])
			if err != nil {
				return err
			}
			return a.run(true, func(w *workspace) error {
				c, err := w.session.Move(args[0], p)
				if err != nil {
					return err
				}
				conflicts, _ := w.session.Conflicts(c.ID)
				return a.output(cmd, placedCharm{Charm: c, Conflicts: conflicts}, func(out io.Writer) {
					printCharm(out, "moved", c, conflicts)
				})
			})
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a charm",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(true, func(w *workspace) error {
				removed, err := w.session.Remove(args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("remove %s: %w", args[0], types.ErrNotFound)
				}
				return a.output(cmd, map[string]string{"removed": args[0]}, func(out io.Writer) {
					fmt.Fprintf(out, "removed %s\n", args[0])
				})
			})
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every charm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(true, func(w *workspace) error {
				n := len(w.session.CharmData())
				if err := w.session.ClearAll(); err != nil {
					return err
				}
				return a.output(cmd, map[string]int{"removed": n}, func(out io.Writer) {
					fmt.Fprintf(out, "removed %d charms\n", n)
				})
			})
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List charms in placement order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(false, func(w *workspace) error {
				charms := w.session.CharmData()
				return a.output(cmd, charms, func(out io.Writer) {
					if len(charms) == 0 {
						fmt.Fprintln(out, "no charms")
						return
					}
					tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tX\tY\tWIDTH\tHEIGHT\tZONE\tTITLE")
					for _, c := range charms {
						zone := "-"
						if z, ok := w.session.ZoneOf(c.ID); ok {
							zone = z.ID
						}
						fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%g\t%s\t%s\n", c.ID, c.Position.X, c.Position.Y,
							c.Size.Width, c.Size.Height, zone, c.Metadata[types.MetaTitle])
					}
					tw.Flush()
				})
			})
		},
	}
}

func newSnapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snap <id>",
		Short: "Snap a charm onto the nearest free attachment zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(true, func(w *workspace) error {
				c, snapped, err := w.session.SnapToAttachmentZone(args[0])
				if err != nil {
					return err
				}
				if !snapped {
					return softFailure("no free attachment zone within %g of %s",
						w.session.Config().SnapThreshold, args[0])
				}
				return a.output(cmd, c, func(out io.Writer) {
					printCharm(out, "snapped", c, nil)
				})
			})
		},
	}
}

func newNearestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "nearest <x> <y>",
		Short: "Show the free attachment zone nearest to a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			return a.run(false, func(w *workspace) error {
				z, ok := w.session.FindNearestAttachmentZone(p)
				if !ok {
					return softFailure("no free attachment zone")
				}
				return a.output(cmd, z, func(out io.Writer) {
					fmt.Fprintf(out, "%s at (%g, %g) radius %g, distance %.1f\n",
						z.ID, z.Position.X, z.Position.Y, z.Radius, types.Distance(z.Position, p))
				})
			})
		},
	}
}
