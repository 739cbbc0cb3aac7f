package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/volfpeter/graphscraper/internal/app"
)

var demoCmd = &cobra.Command{
	Use:   "demo [name...]",
	Short: "Walk a static graph through the lazy-loading machinery",
	Long: `Resolves names against a fully known graph and loads their neighborhoods
through the cache, so the lazy-loading behavior can be observed without any
remote API.

Without arguments the built-in dataset is walked with a few sample lookups;
names may also be vertex indices, as in 'graphscraper demo 5'.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		shutdown, err := app.InitTelemetry(ctx, config)
		if err != nil {
			fmt.Printf("Telemetry init failed: %v\n", err)
			os.Exit(1)
		}
		defer shutdown(ctx)

		store, err := app.OpenStore(config)
		if err != nil {
			fmt.Printf("Failed to open cache: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		g, sg, err := app.NewStaticGraph(store, config)
		if err != nil {
			fmt.Printf("Failed to build graph: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded static graph with %d vertices.\n\n", sg.VertexCount())

		queries := args
		if len(queries) == 0 {
			queries = []string{"Joe", "1", "5"}
		}

		for _, exp := range app.ExpandAll(ctx, g, queries, 1) {
			if exp.Err != nil {
				fmt.Printf("%-12s -> not found (%v)\n", exp.Query, exp.Err)
				continue
			}
			fmt.Printf("%-12s -> %s\n", exp.Query, exp.Name)
			for _, nb := range exp.Neighbors {
				fmt.Printf("  - %s\n", nb)
			}
		}
	},
}

func init() {
	demoCmd.Flags().StringVar(&config.FixturePath, "fixture", "", "YAML graph fixture to walk instead of the built-in dataset")
	rootCmd.AddCommand(demoCmd)
}
