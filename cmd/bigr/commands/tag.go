package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

// NewTagCommand builds the 'tag' command: pin an asset to a category.
func NewTagCommand() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:     "tag <ip> <category>",
		Short:   "Manually pin an asset's BİGR category",
		Long:    "A tagged asset keeps the given category with confidence 1.0 on every future scan until untagged.",
		GroupID: "inventory",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := model.ParseCategory(args[1])
			if err != nil {
				return err
			}

			cfg := configFromContext(cmd.Context())
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.TagAsset(args[0], category, note); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tagged %s as %s\n", args[0], category)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Why this asset is pinned")
	return cmd
}

// NewUntagCommand builds the 'untag' command.
func NewUntagCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "untag <ip>",
		Short:   "Remove an asset's manual category pin",
		GroupID: "inventory",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.UntagAsset(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "untagged %s\n", args[0])
			return nil
		},
	}
}

// NewTagsCommand builds the 'tags' command listing all manual pins.
func NewTagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tags",
		Short:   "List manually pinned assets",
		GroupID: "inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			tags, err := store.GetTags()
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tagged assets")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IP\tCATEGORY\tNOTE")
			for _, tag := range tags {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", tag.IP, tag.Category, tag.Note)
			}
			return tw.Flush()
		},
	}
}
