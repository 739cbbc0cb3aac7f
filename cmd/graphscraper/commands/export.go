package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/volfpeter/graphscraper/internal/app"
)

var (
	exportFormat string
	exportPath   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the cached graph (JSON or DOT)",
	Long: `Writes every node and edge in the local cache in a deterministic order, so
two exports of the same cache are byte-identical.

Example:
  graphscraper export --format dot -o graph.dot`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		store, err := app.OpenStore(config)
		if err != nil {
			fmt.Printf("Failed to open cache: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		nodes, err := store.Nodes(ctx)
		if err != nil {
			fmt.Printf("Failed to read nodes: %v\n", err)
			os.Exit(1)
		}
		edges, err := store.Edges(ctx)
		if err != nil {
			fmt.Printf("Failed to read edges: %v\n", err)
			os.Exit(1)
		}

		out := os.Stdout
		if exportPath != "" {
			out, err = os.Create(exportPath)
			if err != nil {
				fmt.Printf("Failed to create %s: %v\n", exportPath, err)
				os.Exit(1)
			}
			defer out.Close()
		}

		switch exportFormat {
		case "json":
			err = app.WriteJSON(out, nodes, edges)
		case "dot":
			err = app.WriteDOT(out, nodes, edges)
		default:
			fmt.Printf("Unknown format %q (want json or dot)\n", exportFormat)
			os.Exit(1)
		}
		if err != nil {
			fmt.Printf("Export failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json or dot")
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
