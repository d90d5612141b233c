package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/nfrund/courier/internal/config"
	"github.com/nfrund/courier/internal/logging"
	"github.com/nfrund/courier/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the courier server",
	Run: func(cmd *cobra.Command, args []string) {
		logging.New()
		cfg := config.New()

		srv, err := server.New(context.Background(), cfg)
		if err != nil {
			slog.Error("Failed to assemble server", "error", err)
			os.Exit(1)
		}

		slog.Info("Starting server", "addr", cfg.Addr)
		srv.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
