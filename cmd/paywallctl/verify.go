package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stemstr/paywall/internal/credential"
)

var (
	verifyRoot      string
	verifyDischarge string
	verifyOrigin    string
	verifyInvoice   string
)

func init() {
	verifyCmd.Flags().StringVarP(&verifyRoot, "root", "r", "", "encoded root credential")
	verifyCmd.Flags().StringVarP(&verifyDischarge, "discharge", "d", "", "encoded discharge credential")
	verifyCmd.Flags().StringVarP(&verifyOrigin, "origin", "o", "", "client origin the root must be pinned to")
	verifyCmd.Flags().StringVarP(&verifyInvoice, "invoice", "i", "", "invoice id the root must be bound to")

	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "verify a root and discharge pair and print the result",
	RunE:  doVerify,
}

func doVerify(cmd *cobra.Command, args []string) error {
	if sessionSecret == "" {
		return errors.New("missing session secret")
	}

	v := credential.NewVerifier([]byte(sessionSecret))
	err := v.Verify(verifyRoot, verifyDischarge, credential.Context{
		Origin:    verifyOrigin,
		InvoiceID: verifyInvoice,
	})

	fmt.Fprintln(cmd.OutOrStdout(), credential.Reason(err))
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return nil
}
