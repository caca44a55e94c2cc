package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stemstr/paywall/internal/invoice"
	"github.com/stemstr/paywall/internal/invoice/repo/pg"
	"github.com/stemstr/paywall/internal/invoice/repo/sqlite"
)

var (
	invoiceSrcType string
	invoiceSrcURL  string
)

func init() {
	invoiceCmd.Flags().StringVarP(&invoiceSrcType, "src", "", "sqlite3", "invoice store type: sqlite3 or postgresql")
	invoiceCmd.Flags().StringVarP(&invoiceSrcURL, "srcurl", "", os.Getenv("DB_FILE"), "invoice store url: /path/to/paywall.db or postgresql://...")

	rootCmd.AddCommand(invoiceCmd)
}

var invoiceCmd = &cobra.Command{
	Use:   "invoice <id>",
	Short: "show what the server recorded for an invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  doInvoice,
}

type invoiceReader interface {
	GetInvoice(ctx context.Context, id string) (*invoice.Record, error)
	Close() error
}

func openInvoices(srcType, srcURL string) (invoiceReader, error) {
	if srcURL == "" {
		return nil, errors.New("--srcurl is required")
	}
	switch srcType {
	case "sqlite3":
		// Opening a missing path would create an empty database.
		if _, err := os.Stat(srcURL); err != nil {
			return nil, fmt.Errorf("invoice store %s not found: %w", srcURL, err)
		}
		return sqlite.New(srcURL)
	case "postgresql":
		return pg.New(srcURL)
	}
	return nil, fmt.Errorf("unknown invoice store %q", srcType)
}

func doInvoice(cmd *cobra.Command, args []string) error {
	repo, err := openInvoices(invoiceSrcType, invoiceSrcURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	rec, err := repo.GetInvoice(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("invoice %s not found", args[0])
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:\t%s\n", rec.ID)
	fmt.Fprintf(out, "provider:\t%s\n", rec.Provider)
	fmt.Fprintf(out, "amount:\t%d\n", rec.AmountUnits)
	fmt.Fprintf(out, "description:\t%s\n", rec.Description)
	fmt.Fprintf(out, "payreq:\t%s\n", rec.PaymentRequest)
	fmt.Fprintf(out, "created:\t%s\n", rec.CreatedAt.UTC().Format(time.RFC3339))
	if rec.ValidUntil != nil {
		fmt.Fprintf(out, "valid until:\t%s\n", rec.ValidUntil.UTC().Format(time.RFC3339Nano))
	} else {
		fmt.Fprintln(out, "valid until:\t-")
	}
	return nil
}
