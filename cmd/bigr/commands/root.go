package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bigrlabs/bigr-discovery/pkg/config"
	"github.com/bigrlabs/bigr-discovery/pkg/logging"
)

const cliExecutable = "bigr"

type contextKey string

// configKey carries the loaded configuration through command contexts.
const configKey contextKey = "bigr.config"

// configFromContext returns the configuration loaded by the root command.
func configFromContext(ctx context.Context) config.Config {
	if cfg, ok := ctx.Value(configKey).(config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

// NewCommand constructs the top-level bigr CLI command, wiring global flags,
// configuration loading and logging setup.
func NewCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "BİGR Discovery finds, classifies and monitors network assets",
		Long: `bigr discovers hosts on local networks with a hybrid of passive ARP
harvesting, mDNS listening and active probing, classifies each asset into
a BİGR inventory category, and journals every change between scans.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				if home, err := os.UserHomeDir(); err == nil {
					configFile = filepath.Join(config.DefaultBaseDir(home), "config.yaml")
				}
			}

			manager := config.NewManager()
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := manager.Get()

			if err := logging.ConfigureGlobalLogging(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "scan", Title: "Scan Commands"})
	cmd.AddGroup(&cobra.Group{ID: "inventory", Title: "Inventory Commands"})

	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewWatchCommand())
	cmd.AddCommand(NewAssetsCommand())
	cmd.AddCommand(NewChangesCommand())
	cmd.AddCommand(NewSubnetCommand())
	cmd.AddCommand(NewTagCommand())
	cmd.AddCommand(NewUntagCommand())
	cmd.AddCommand(NewTagsCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
