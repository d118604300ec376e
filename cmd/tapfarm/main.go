// tapfarm farms the DJDog tap game for every account in a list, one account
// at a time, and repeats the pass forever with an idle cooldown.
//
// Usage:
//
//	tapfarm [--config PATH] <command> [flags]
//
// Commands:
//
//	run       farm all accounts until interrupted
//	accounts  list the loaded accounts
//	history   show recent passes
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set with ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tapfarm",
		Short:         "Multi-account DJDog tap farmer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "path to config.yaml")

	rootCmd.AddCommand(
		newRunCmd(&configPath),
		newAccountsCmd(&configPath),
		newHistoryCmd(&configPath),
	)
	return rootCmd
}
