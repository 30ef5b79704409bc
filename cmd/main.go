package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errs.NewDefaultHandler().Handle(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := newApp()
	root := &cobra.Command{
		Use:           "nara",
		Short:         "Offline library cache and multilingual content sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (yaml, json or toml)")
	flags.String("log-level", "", "debug|info|warn|error")
	_ = a.v.BindPFlag("system.log_level", flags.Lookup("log-level"))

	root.AddCommand(
		newServeCmd(a),
		newSyncCmd(a),
		newOfflineCmd(a),
		newCategoriesCmd(),
	)
	return root
}
