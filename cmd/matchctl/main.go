// Command matchctl is the operator CLI for the red/blue matching
// service: triggering and inspecting batch match runs, and bulk
// loading the SKU reference table.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qinqiang2000/RedBlueMatcher/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "matchctl",
	Short: "Operate the red/blue bill matching service",
}

func main() {
	if err := logger.Setup("info", "console"); err != nil {
		fmt.Fprintf(os.Stderr, "matchctl: logger setup: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("matchctl")
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
