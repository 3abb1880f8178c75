package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the charmsmith release.
const Version = "0.3.0"

const modulePath = "github.com/mesh-intelligence/charmsmith"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the charmsmith version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "charmsmith v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
