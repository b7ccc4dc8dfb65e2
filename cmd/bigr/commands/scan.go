package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bigrlabs/bigr-discovery/pkg/inventory"
	"github.com/bigrlabs/bigr-discovery/pkg/output"
)

// NewScanCommand builds the one-shot 'scan' command.
func NewScanCommand() *cobra.Command {
	var (
		mode         string
		ports        string
		outputFormat string
		noDB         bool
	)

	cmd := &cobra.Command{
		Use:     "scan <cidr>",
		Short:   "Scan a network once and classify everything it finds",
		GroupID: "scan",
		Args:    cobra.ExactArgs(1),
		Example: `  bigr scan 192.168.1.0/24
  bigr scan 10.0.0.0/24 --mode passive
  bigr scan 192.168.1.0/24 --output json > scan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			if mode != "" {
				cfg.Scan.Mode = mode
			}
			if ports != "" {
				cfg.Scan.Ports = ports
			}

			var store *inventory.Store
			if !noDB {
				var err error
				if store, err = openStore(cfg); err != nil {
					return err
				}
				defer store.Close()
			}

			target := args[0]
			log.Info().Str("target", target).Str("mode", cfg.Scan.Mode).Msg("scan starting")

			result, err := runPipeline(cmd.Context(), cfg, target, store)
			if err != nil {
				return err
			}

			switch outputFormat {
			case "json":
				return output.WriteJSON(os.Stdout, result)
			case "csv":
				return output.WriteCSV(os.Stdout, result)
			case "text", "":
				return output.WriteSummary(os.Stdout, result)
			default:
				return fmt.Errorf("unknown output format %q (want json, csv or text)", outputFormat)
			}
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Scan mode: passive, active or hybrid (default from config)")
	cmd.Flags().StringVar(&ports, "ports", "", "Ports to probe, e.g. 22,80,443,8000-8100")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: json, csv or text")
	cmd.Flags().BoolVar(&noDB, "no-db", false, "Do not persist the scan to the inventory")

	return cmd
}
