package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/nfrund/courier/internal/chat"
	"github.com/nfrund/courier/internal/topics"
	"github.com/nfrund/courier/internal/websocket"
	"github.com/spf13/cobra"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the registered bus topics",
	Run: func(cmd *cobra.Command, args []string) {
		if err := chat.RegisterTopics(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := websocket.RegisterTopics(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, t := range topics.Default().List() {
			fmt.Fprintf(w, "%s\t%s\n", t.Name(), t.Description())
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(topicsCmd)
}
