package commands

import (
	"fmt"
	"net"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

// NewSubnetCommand builds the 'subnet' command group: add, list, remove.
func NewSubnetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subnet",
		Short:   "Manage registered scan targets",
		GroupID: "inventory",
	}
	cmd.AddCommand(newSubnetAddCommand())
	cmd.AddCommand(newSubnetListCommand())
	cmd.AddCommand(newSubnetRemoveCommand())
	return cmd
}

func newSubnetAddCommand() *cobra.Command {
	var (
		label  string
		vlanID int
	)

	cmd := &cobra.Command{
		Use:   "add <cidr>",
		Short: "Register a subnet as a scan target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := net.ParseCIDR(args[0]); err != nil {
				return fmt.Errorf("invalid CIDR %q: %w", args[0], err)
			}

			cfg := configFromContext(cmd.Context())
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			sub := model.Subnet{CIDR: args[0], Label: label}
			if cmd.Flags().Changed("vlan") {
				sub.VLANID = &vlanID
			}
			if err := store.AddSubnet(sub); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Human-readable label")
	cmd.Flags().IntVar(&vlanID, "vlan", 0, "VLAN identifier")
	return cmd
}

func newSubnetListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered subnets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			subs, err := store.ListSubnets()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CIDR\tLABEL\tVLAN\tASSETS\tLAST SCANNED")
			for _, s := range subs {
				vlan, last := "-", "-"
				if s.VLANID != nil {
					vlan = fmt.Sprintf("%d", *s.VLANID)
				}
				if s.LastScanned != nil {
					last = s.LastScanned.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.CIDR, s.Label, vlan, s.AssetCount, last)
			}
			return tw.Flush()
		},
	}
}

func newSubnetRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <cidr>",
		Short: "Remove a registered subnet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.RemoveSubnet(args[0])
		},
	}
}
