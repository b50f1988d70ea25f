package main

import (
	"encoding/json"
	"fmt"
	"github.com/QQGoblin/lnfleet/pkg/fleet"
	"github.com/QQGoblin/lnfleet/pkg/lnnode"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"io"
	"time"
)

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode result")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// withFleet builds the fleet from the loaded configuration and releases it after fn.
func withFleet(o *rootOptions, fn func(f *fleet.Fleet) error) error {
	f, closer, err := newFleet(o.cfg)
	if err != nil {
		return err
	}
	defer closer()
	return fn(f)
}

func withNode(o *rootOptions, index int, fn func(n *lnnode.Node) error) error {
	return withFleet(o, func(f *fleet.Fleet) error {
		n, err := f.Node(index)
		if err != nil {
			return err
		}
		return fn(n)
	})
}

func nodeCmd(o *rootOptions, use, short string, run func(cmd *cobra.Command, n *lnnode.Node) error) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withNode(o, index, func(n *lnnode.Node) error {
				return run(cmd, n)
			})
		},
	}
	cmd.Flags().IntVar(&index, "node", 0, "node index")
	return cmd
}

func newAddressCmd(o *rootOptions) *cobra.Command {
	return nodeCmd(o, "address", "Print a new on-chain receive address", func(cmd *cobra.Command, n *lnnode.Node) error {
		addr, err := n.NewReceiveAddress(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), addr)
		return err
	})
}

func newBalanceCmd(o *rootOptions) *cobra.Command {
	return nodeCmd(o, "balance", "Print the wallet balance", func(cmd *cobra.Command, n *lnnode.Node) error {
		res, err := n.WalletBalance(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	})
}

func newPubkeyCmd(o *rootOptions) *cobra.Command {
	return nodeCmd(o, "pubkey", "Print the node identity key", func(cmd *cobra.Command, n *lnnode.Node) error {
		pk, err := n.Pubkey(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), pk)
		return err
	})
}

func newConnectCmd(o *rootOptions) *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a node to a peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withFleet(o, func(f *fleet.Fleet) error {
				res, err := f.Connect(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().IntVar(&from, "node", 0, "index of the connecting node")
	cmd.Flags().IntVar(&to, "peer", 1, "index of the peer")
	return cmd
}

func newOpenChannelCmd(o *rootOptions) *cobra.Command {
	var (
		from, to int
		amount   int64
	)
	cmd := &cobra.Command{
		Use:   "open-channel",
		Short: "Open a channel from a node to a peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withFleet(o, func(f *fleet.Fleet) error {
				res, err := f.OpenChannel(cmd.Context(), from, to, amount)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().IntVar(&from, "node", 0, "index of the funding node")
	cmd.Flags().IntVar(&to, "peer", 1, "index of the peer")
	cmd.Flags().Int64Var(&amount, "amount", 0, "channel capacity in satoshis")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the state of every node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withFleet(o, func(f *fleet.Fleet) error {
				for _, s := range f.Status(cmd.Context()) {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), s.String()); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newWaitCmd(o *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		attempts uint64
	)
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until every node is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withFleet(o, func(f *fleet.Fleet) error {
				return f.WaitReady(cmd.Context(), interval, attempts)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", fleet.DefaultReadyInterval, "time between checks")
	cmd.Flags().Uint64Var(&attempts, "attempts", fleet.DefaultReadyAttempts, "checks before giving up")
	return cmd
}

func newExportCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export node credentials and write the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withFleet(o, func(f *fleet.Fleet) error {
				manifest, err := f.ExportAll(cmd.Context(), afero.NewOsFs(), o.cfg.Export.Dir)
				if manifest != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "session %s: %d nodes exported\n", manifest.Session(), len(manifest.Records()))
				}
				return err
			})
		},
	}
}

func newCLICmd(o *rootOptions) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "cli -- <args>...",
		Short: "Print the control command line for a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, opts := range o.cfg.NodeOptions() {
				if opts.Index != index {
					continue
				}
				line, err := lnnode.GenerateCLICommand(opts.Kind, opts.Network, args)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
				return err
			}
			return errors.Wrapf(fleet.ErrUnknownNode, "index %d", index)
		},
	}
	cmd.Flags().IntVar(&index, "node", 0, "node index")
	return cmd
}
