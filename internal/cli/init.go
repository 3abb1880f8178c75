package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/charmsmith/internal/paths"
	"github.com/mesh-intelligence/charmsmith/internal/sqlite"
	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file and history store",
		Long: "Init writes a default config.yaml to the configuration directory if none\n" +
			"exists, then creates the history store in the data directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(a.flags.configDir)
			if err != nil {
				return sysError(fmt.Errorf("resolve config dir: %w", err))
			}
			if err := os.MkdirAll(configDir, 0o755); err != nil {
				return sysError(fmt.Errorf("create config directory: %w", err))
			}
			wrote, err := writeConfigIfMissing(configDir, a.flags.dataDir)
			if err != nil {
				return sysError(fmt.Errorf("write config: %w", err))
			}

			st, dataDir, err := a.resolve()
			if err != nil {
				return err
			}
			backend := sqlite.NewBackend(sqlite.WithLogger(a.logger))
			if err := backend.Attach(types.StoreConfig{Backend: st.backend, DataDir: dataDir}); err != nil {
				return sysError(fmt.Errorf("initialize store: %w", err))
			}
			if err := backend.Detach(); err != nil {
				return sysError(fmt.Errorf("finalize store: %w", err))
			}

			result := map[string]string{"config": paths.ConfigFile(configDir), "data_dir": dataDir}
			return a.output(cmd, result, func(out io.Writer) {
				if wrote {
					fmt.Fprintf(out, "wrote %s\n", paths.ConfigFile(configDir))
				}
				fmt.Fprintf(out, "charmsmith initialized in %s\n", dataDir)
			})
		},
	}
}
