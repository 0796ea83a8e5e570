package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	pkgcrypto "github.com/and161185/txguard/internal/crypto"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh 256-bit key as 64 hex characters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := pkgcrypto.GenerateEncryptionKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k)
			return nil
		},
	}
}

func txidCmd() *cobra.Command {
	var secure bool
	cmd := &cobra.Command{
		Use:   "txid",
		Short: "Print a new transaction id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen := pkgcrypto.GenerateTransactionID
			if secure {
				gen = pkgcrypto.GenerateSecureTransactionID
			}
			id, err := gen(time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&secure, "secure", "s", false, "use the long STXN form")
	return cmd
}
