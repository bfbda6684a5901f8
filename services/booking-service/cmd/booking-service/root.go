package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "booking-service",
	Short: "Clinic appointment slot allocation service",
	Long: `booking-service computes bookable slots from clinic hours and occupancy,
places short-lived holds and commits appointments without double booking.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "optional YAML config file; environment variables take precedence")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newSweepCommand())
	rootCmd.AddCommand(newProbeCommand())
}
