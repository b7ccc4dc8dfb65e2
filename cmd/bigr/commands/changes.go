package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigrlabs/bigr-discovery/pkg/diffengine"
)

// NewChangesCommand builds the 'changes' command showing recent journal rows.
func NewChangesCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "changes",
		Short:   "Show the most recent inventory changes",
		GroupID: "inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			changes, err := diffengine.StoredChanges(store, limit)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no changes recorded")
				return nil
			}
			printChanges(cmd, changes)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of changes to show")
	return cmd
}
