package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stemstr/paywall/internal/credential"
)

var (
	dischargeInvoice string
	dischargeSeconds int64
)

func init() {
	dischargeCmd.Flags().StringVarP(&dischargeInvoice, "invoice", "i", "", "invoice id the discharge satisfies")
	dischargeCmd.Flags().Int64VarP(&dischargeSeconds, "seconds", "s", 0, "seconds of access from now")

	rootCmd.AddCommand(dischargeCmd)
}

var dischargeCmd = &cobra.Command{
	Use:   "discharge",
	Short: "mint a discharge for a paid invoice",
	RunE:  doDischarge,
}

func doDischarge(cmd *cobra.Command, args []string) error {
	if dischargeSeconds <= 0 {
		return errors.New("--seconds must be positive")
	}

	b := credential.NewBuilder([]byte(sessionSecret), []byte(caveatKey))
	m, err := b.IssueDischarge(location, dischargeInvoice, credential.ValidUntil(time.Now(), dischargeSeconds))
	if err != nil {
		return err
	}

	encoded, err := credential.Encode(m)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), encoded)
	return nil
}
