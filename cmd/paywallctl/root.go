package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	sessionSecret string
	caveatKey     string
	location      string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&sessionSecret, "session-secret", "", os.Getenv("SESSION_SECRET"), "root credential signing secret (default $SESSION_SECRET)")
	rootCmd.PersistentFlags().StringVarP(&caveatKey, "caveat-key", "", os.Getenv("CAVEAT_KEY"), "discharge signing key (default $CAVEAT_KEY)")
	rootCmd.PersistentFlags().StringVarP(&location, "location", "", os.Getenv("LOCATION"), "credential location")
}

var rootCmd = &cobra.Command{
	Use:           "paywallctl",
	Short:         "inspect, mint and verify paywall credentials",
	SilenceUsage:  true,
	SilenceErrors: false,
}
