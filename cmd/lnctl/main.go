package main

import (
	"context"
	"flag"
	"github.com/QQGoblin/lnfleet/pkg/config"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		klog.Errorf("%v", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "lnctl",
		Short:         "Control the lightning nodes of a simulated network",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			o.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&o.configFile, "config", "", "config file (yaml, json or toml)")
	config.AddFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmd.AddCommand(
		newAddressCmd(o),
		newBalanceCmd(o),
		newPubkeyCmd(o),
		newConnectCmd(o),
		newOpenChannelCmd(o),
		newStatusCmd(o),
		newWaitCmd(o),
		newExportCmd(o),
		newCLICmd(o),
	)
	return cmd
}
