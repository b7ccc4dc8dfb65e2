package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

// NewAssetsCommand builds the 'assets' command group: list, history.
func NewAssetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assets",
		Short:   "Inspect the asset inventory",
		GroupID: "inventory",
	}
	cmd.AddCommand(newAssetsListCommand())
	cmd.AddCommand(newAssetsHistoryCommand())
	return cmd
}

func newAssetsListCommand() *cobra.Command {
	var (
		category   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all known assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			assets, err := store.GetAllAssets()
			if err != nil {
				return err
			}
			if category != "" {
				want, err := model.ParseCategory(category)
				if err != nil {
					return err
				}
				filtered := assets[:0]
				for _, a := range assets {
					if a.Category == want {
						filtered = append(filtered, a)
					}
				}
				assets = filtered
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(assets)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IP\tMAC\tHOSTNAME\tVENDOR\tCATEGORY\tCONFIDENCE\tLAST SEEN")
			for _, a := range assets {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
					a.IP, a.MAC, a.Hostname, a.Vendor, a.Category, a.ConfidenceScore,
					a.LastSeen.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by BİGR category")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newAssetsHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <ip|mac> [limit]",
		Short: "Show the change journal for one asset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			changes, err := store.GetAssetHistory(args[0])
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no history for %s\n", args[0])
				return nil
			}
			if len(args) == 2 {
				if limit := cast.ToInt(args[1]); limit > 0 && limit < len(changes) {
					changes = changes[:limit]
				}
			}

			printChanges(cmd, changes)
			return nil
		},
	}
}

func printChanges(cmd *cobra.Command, changes []model.AssetChange) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DETECTED\tIP\tTYPE\tFIELD\tOLD\tNEW")
	for _, ch := range changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ch.DetectedAt.Format("2006-01-02 15:04:05"), ch.IP,
			ch.ChangeType, ch.FieldName, ch.OldValue, ch.NewValue)
	}
	tw.Flush()
}
