// Command txguardctl is an operator tool for the transaction security core:
// key generation, transaction ids, card checks and offline envelope
// verification.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "txguardctl",
		Short:         "Operator tooling for txguard",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(txidCmd())
	rootCmd.AddCommand(cardCmd())
	rootCmd.AddCommand(envelopeCmd())
	return rootCmd
}
