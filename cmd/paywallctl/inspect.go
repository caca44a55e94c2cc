package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stemstr/paywall/internal/caveat"
	"github.com/stemstr/paywall/internal/credential"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <credential>",
	Short: "print the id, location and caveats of an encoded credential",
	Args:  cobra.ExactArgs(1),
	RunE:  doInspect,
}

func doInspect(cmd *cobra.Command, args []string) error {
	m, err := credential.Decode(args[0])
	if err != nil {
		return err
	}
	cavs, err := caveat.FromMacaroon(m)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:\t%s\n", m.Id())
	fmt.Fprintf(out, "location:\t%s\n", m.Location())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCONDITION\tLOCATION")
	for _, c := range cavs {
		cond := c.ID
		if c.Kind != caveat.ThirdParty {
			if cond, err = c.Condition(); err != nil {
				return err
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Kind, cond, c.Location)
	}
	return tw.Flush()
}
