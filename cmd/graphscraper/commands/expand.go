package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/volfpeter/graphscraper/internal/app"
)

var expandConcurrency int

var expandCmd = &cobra.Command{
	Use:   "expand <artist>...",
	Short: "Resolve artists and their related artists via Spotify",
	Long: `Looks up each artist on Spotify, loads their related artists into the local
cache and prints the neighborhood. Artists already in the cache are served
from it without touching the API.

Credentials come from --client-id/--client-secret, the config file, or the
SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET environment variables.

Example:
  graphscraper expand Queen "Pink Floyd"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		if config.SpotifyClientID == "" {
			config.SpotifyClientID = viper.GetString("spotify_client_id")
		}
		if config.SpotifyClientSecret == "" {
			config.SpotifyClientSecret = viper.GetString("spotify_client_secret")
		}

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

		g, err := app.NewSpotifyGraph(store, config)
		if err != nil {
			fmt.Printf("Failed to build artist graph: %v\n", err)
			os.Exit(1)
		}

		failed := false
		for _, exp := range app.ExpandAll(ctx, g, args, expandConcurrency) {
			if exp.Err != nil {
				fmt.Printf("%s: %v\n", exp.Query, exp.Err)
				failed = true
				continue
			}
			fmt.Printf("%s -> %s\n", exp.Query, exp.Name)
			for _, nb := range exp.Neighbors {
				fmt.Printf("  - %s\n", nb)
			}
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	expandCmd.Flags().StringVar(&config.SpotifyClientID, "client-id", "", "Spotify API client ID")
	expandCmd.Flags().StringVar(&config.SpotifyClientSecret, "client-secret", "", "Spotify API client secret")
	expandCmd.Flags().IntVar(&config.NeighborCount, "neighbors", 0, "Related artists to load per node (default 6)")
	expandCmd.Flags().IntVar(&expandConcurrency, "concurrency", 4, "Concurrent artist expansions")
	rootCmd.AddCommand(expandCmd)
}
