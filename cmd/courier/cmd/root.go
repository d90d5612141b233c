package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Direct-message presence and fan-out service",
	Long: `Courier is a two-party chat backend: it tracks which identities are
online, persists messages, and fans out message and presence events to
every live connection of the participants.`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
