package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	pkgcrypto "github.com/and161185/txguard/internal/crypto"
)

var errInvalidCard = errors.New("invalid card number")

func cardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Card number checks",
	}
	cmd.AddCommand(cardValidateCmd())
	cmd.AddCommand(cardBrandCmd())
	cmd.AddCommand(cardExpiryCmd())
	return cmd
}

func cardValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <number>",
		Short: "Check length and Luhn checksum; prints the masked number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clean := pkgcrypto.CleanCardNumber(args[0])
			if !pkgcrypto.ValidateCardNumber(clean) {
				return errInvalidCard
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s %s\n",
				pkgcrypto.DetectCardBrand(clean), pkgcrypto.MaskCardNumber(clean[len(clean)-4:]))
			return nil
		},
	}
}

func cardBrandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "brand <number>",
		Short: "Detect the card brand from its prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), pkgcrypto.DetectCardBrand(args[0]))
			return nil
		},
	}
}

func cardExpiryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expiry <MM/YY>",
		Short: "Check that an expiry is well-formed and not in the past",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !pkgcrypto.ValidateExpiry(args[0], time.Now()) {
				return fmt.Errorf("invalid or expired: %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
